package session

import (
	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/log"
)

// Services are the services required to create a Manager
type Services struct {
	Logger log.Logger
}

// NewStore creates the store selected by the configuration
func NewStore(services *Services, config *Config) (Store, error) {
	if config.StoreConfig == nil || config.StoreConfig.ID() != config.Provider {
		return nil, stderr.Errorf("store configuration does not match provider %s", config.Provider)
	}

	switch config.Provider {
	case StoreRedisSingle:
		return NewSingleRedisStore(services.Logger, SingleInstanceProps{
			Addr: config.StoreConfig.(*StoreRedisSingleConfig).Addr,
		}), nil
	case StoreRedisCluster:
		return NewClusterRedisStore(services.Logger, ClusterProps{
			Addrs: config.StoreConfig.(*StoreRedisClusterConfig).Addrs,
		}), nil
	case StoreMem:
		return NewMemoryStore(), nil
	default:
		return nil, stderr.Errorf("unknown session store provider %s", config.Provider)
	}
}

// NewManagerWithConfig creates a Manager with the configured store
// and push channels over websockets
func NewManagerWithConfig(services *Services, config *Config) (*Manager, error) {
	store, err := NewStore(services, config)
	if err != nil {
		return nil, err
	}

	return NewManager(&Deps{
		Logger: services.Logger,
		Store:  store,
		Dialer: NewWebsocketDialer(),
	}, &Props{
		Reconnect: concurrent.FixedRetryConfig(config.ReconnectInterval, config.ReconnectAttempts),
	}), nil
}

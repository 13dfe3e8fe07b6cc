package session

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/log"
)

// StoreProvider identifies the backend of the session store
type StoreProvider string

const (
	StoreRedisSingle  StoreProvider = "redis-single"
	StoreRedisCluster StoreProvider = "redis-cluster"
	StoreMem          StoreProvider = "mem"
)

func (p StoreProvider) String() string {
	return string(p)
}

const (
	cfgStoreProvider      = "session.store.provider"
	cfgRedisSingleAddr    = "session.store.redis_single.addr"
	cfgRedisClusterAddrs  = "session.store.redis_cluster.addrs"
	cfgReconnectInterval  = "session.reconnect.interval"
	cfgReconnectAttempts  = "session.reconnect.attempts"
	defaultReconnectDelay = 500 * time.Millisecond
)

// Config is the configuration of the session manager
type Config struct {
	Provider    StoreProvider
	StoreConfig StoreConfig

	// ReconnectInterval is the wait before a failed push channel is
	// dialed again
	ReconnectInterval time.Duration

	// ReconnectAttempts caps the failed attempts of a push channel.
	// Zero means that it is dialed until the session is closed
	ReconnectAttempts uint8
}

func (c *Config) Log(fields log.Fields) {
	fields.Add(cfgStoreProvider, c.Provider)
	fields.Add(cfgReconnectInterval, c.ReconnectInterval)
	fields.Add(cfgReconnectAttempts, c.ReconnectAttempts)

	if c.StoreConfig != nil {
		c.StoreConfig.Log(fields)
	}
}

func (c *Config) Configure(v *viper.Viper) error {
	c.ReconnectInterval = v.GetDuration(cfgReconnectInterval)
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectDelay
	}
	c.ReconnectAttempts = uint8(v.GetUint(cfgReconnectAttempts))

	c.Provider = StoreProvider(v.GetString(cfgStoreProvider))
	if len(c.Provider) == 0 {
		return config.ErrKeyNotSet{Key: cfgStoreProvider}
	}

	switch c.Provider {
	case StoreMem:
		c.StoreConfig = &StoreMemConfig{}
	case StoreRedisSingle:
		c.StoreConfig = &StoreRedisSingleConfig{}
	case StoreRedisCluster:
		c.StoreConfig = &StoreRedisClusterConfig{}
	default:
		return config.ErrInvalidValue{
			Key:          cfgStoreProvider,
			InvalidValue: c.Provider.String(),
			Values: []string{
				StoreRedisSingle.String(),
				StoreRedisCluster.String(),
				StoreMem.String(),
			},
		}
	}

	return c.StoreConfig.Configure(v)
}

func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String(cfgStoreProvider, "mem",
		"provider for the session store. "+
			"Options are "+string(StoreMem)+
			", "+string(StoreRedisSingle)+
			", "+string(StoreRedisCluster)+".")
	cmd.PersistentFlags().Duration(cfgReconnectInterval, defaultReconnectDelay,
		"wait before a failed push channel connection is dialed again.")
	cmd.PersistentFlags().Uint(cfgReconnectAttempts, 0,
		"maximum failed dials of a push channel. 0 retries until the session is closed.")

	binders := []config.Binder{
		&StoreRedisSingleConfig{},
		&StoreRedisClusterConfig{},
		&StoreMemConfig{},
	}
	for _, b := range binders {
		if err := b.Bind(v, cmd); err != nil {
			return err
		}
	}

	return nil
}

// StoreConfig is the configuration specific to a store provider
type StoreConfig interface {
	log.Loggable
	config.Binder
	ID() StoreProvider
}

type StoreRedisSingleConfig struct {
	Addr string
}

func (c *StoreRedisSingleConfig) Log(fields log.Fields) {
	fields.Add(cfgRedisSingleAddr, c.Addr)
}

func (c *StoreRedisSingleConfig) ID() StoreProvider {
	return StoreRedisSingle
}

func (c *StoreRedisSingleConfig) Configure(v *viper.Viper) error {
	c.Addr = v.GetString(cfgRedisSingleAddr)
	if len(c.Addr) == 0 {
		return config.ErrKeyNotSet{Key: cfgRedisSingleAddr}
	}

	return nil
}

func (c *StoreRedisSingleConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String(cfgRedisSingleAddr, "127.0.0.1:6379", "redis instance address")
	return nil
}

type StoreRedisClusterConfig struct {
	Addrs []string
}

func (c *StoreRedisClusterConfig) Log(fields log.Fields) {
	fields.Add(cfgRedisClusterAddrs, strings.Join(c.Addrs, ","))
}

func (c *StoreRedisClusterConfig) ID() StoreProvider {
	return StoreRedisCluster
}

func (c *StoreRedisClusterConfig) Configure(v *viper.Viper) error {
	c.Addrs = v.GetStringSlice(cfgRedisClusterAddrs)
	if len(c.Addrs) == 0 {
		return config.ErrKeyNotSet{Key: cfgRedisClusterAddrs}
	}

	return nil
}

func (c *StoreRedisClusterConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().StringSlice(
		cfgRedisClusterAddrs,
		[]string{"127.0.0.1:6379"},
		"array of addresses for bootstrap redis instances in the cluster")
	return nil
}

type StoreMemConfig struct{}

func (c *StoreMemConfig) Log(fields log.Fields) {}

func (c *StoreMemConfig) ID() StoreProvider {
	return StoreMem
}

func (c *StoreMemConfig) Configure(v *viper.Viper) error {
	return nil
}

func (c *StoreMemConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	return nil
}

package session

import (
	"context"

	"github.com/go-redis/redis"
	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
)

// RedisClient is the subset of the redis client used by RedisStore
type RedisClient interface {
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisDeps are the dependencies of a RedisStore
type RedisDeps struct {
	Logger log.Logger
	Client RedisClient
}

// SingleInstanceProps define a RedisStore backed by a single instance
type SingleInstanceProps struct {
	Addr string
}

// ClusterProps define a RedisStore backed by a cluster
type ClusterProps struct {
	// Addrs is a seed list of host:port addresses of cluster nodes
	Addrs []string
}

// RedisStore is a Store that keeps sessions in redis under
// {esr:session}:<id> keys along with a set that indexes them
type RedisStore struct {
	client  RedisClient
	logger  log.Logger
	metrics *metrics.DatabaseMetrics
}

// NewRedisStoreWithDeps creates a RedisStore on top of the provided
// client
func NewRedisStoreWithDeps(deps *RedisDeps) *RedisStore {
	return &RedisStore{
		client:  deps.Client,
		logger:  deps.Logger.ForClass("session", "RedisStore"),
		metrics: metrics.NewDefaultDatabaseMetrics("esr_session_store"),
	}
}

// NewSingleRedisStore creates a RedisStore that talks to a single
// redis instance
func NewSingleRedisStore(logger log.Logger, props SingleInstanceProps) *RedisStore {
	return NewRedisStoreWithDeps(&RedisDeps{
		Logger: logger,
		Client: redis.NewClient(&redis.Options{Addr: props.Addr}),
	})
}

// NewClusterRedisStore creates a RedisStore that talks to a redis
// cluster
func NewClusterRedisStore(logger log.Logger, props ClusterProps) *RedisStore {
	return NewRedisStoreWithDeps(&RedisDeps{
		Logger: logger,
		Client: redis.NewClusterClient(&redis.ClusterOptions{Addrs: props.Addrs}),
	})
}

func (s *RedisStore) exec(ctx context.Context, name string, cmd command) (interface{}, error) {
	timer := s.metrics.DatabaseTimer(name)
	defer timer.ObserveDuration()

	v, err := s.client.Eval(string(cmd.Op()), cmd.Keys(), cmd.Args()...).Result()
	if err != nil && err != redis.Nil {
		s.metrics.DatabaseCounter(name, "failure").Inc()
		s.logger.Debug(ctx, "redis command failed", log.MapFields{
			"call_type": "RedisExecFailure",
			"operation": name,
			"err":       err.Error(),
		})
		return nil, stderr.Wrapf(err, "redis %s failed", name)
	}

	s.metrics.DatabaseCounter(name, "success").Inc()
	return v, err
}

// Save implementation of Store for RedisStore
func (s *RedisStore) Save(ctx context.Context, id string, blob []byte) error {
	_, err := s.exec(ctx, "save", saveRequest{ID: id, Blob: blob})
	return err
}

// Load implementation of Store for RedisStore
func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	v, err := s.exec(ctx, "load", loadRequest{ID: id})
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	blob, ok := v.(string)
	if !ok {
		return nil, stderr.Errorf("unexpected redis reply %T", v)
	}
	return []byte(blob), nil
}

// Delete implementation of Store for RedisStore
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete", deleteRequest{ID: id})
	if err == redis.Nil {
		return nil
	}
	return err
}

// List implementation of Store for RedisStore
func (s *RedisStore) List(ctx context.Context) ([][]byte, error) {
	v, err := s.exec(ctx, "list", listRequest{})
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	values, ok := v.([]interface{})
	if !ok {
		return nil, stderr.Errorf("unexpected redis reply %T", v)
	}

	blobs := make([][]byte, 0, len(values))
	for _, value := range values {
		blob, ok := value.(string)
		if !ok {
			return nil, stderr.Errorf("unexpected redis reply %T", value)
		}
		blobs = append(blobs, []byte(blob))
	}
	return blobs, nil
}

package callback

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/log"
)

const cfgCallbackTimeout = "callback.timeout"

// Config is the configuration of the callback client
type Config struct {
	// Timeout of a single delivery
	Timeout time.Duration
}

func (c *Config) Log(fields log.Fields) {
	fields.Add(cfgCallbackTimeout, c.Timeout)
}

func (c *Config) Configure(v *viper.Viper) error {
	c.Timeout = v.GetDuration(cfgCallbackTimeout)
	if c.Timeout <= 0 {
		return config.ErrInvalidValue{
			Key:          cfgCallbackTimeout,
			InvalidValue: c.Timeout.String(),
			Values:       []string{"a positive duration"},
		}
	}

	return nil
}

func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().Duration(cfgCallbackTimeout, 10*time.Second,
		"timeout of the http request that delivers a callback. Deliveries are never retried.")
	return nil
}

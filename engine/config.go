package engine

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/log"
)

const (
	cfgEngineSchemes        = "engine.schemes"
	cfgEngineChannelService = "engine.channel_service"
	cfgEngineName           = "engine.name"
	cfgEngineAbiCache       = "engine.abi_cache"
	cfgEngineQueueCapacity  = "engine.queue_capacity"
)

// Config is the configuration of the engine
type Config struct {
	Schemes        []string
	ChannelService string
	Name           string

	// AbiCache keeps fetched ABIs for the lifetime of the process,
	// or until the wallet is reset
	AbiCache bool

	// QueueCapacity is the number of ordered steps that can be
	// waiting to run
	QueueCapacity int
}

func (c *Config) Log(fields log.Fields) {
	fields.Add(cfgEngineSchemes, strings.Join(c.Schemes, ","))
	fields.Add(cfgEngineChannelService, c.ChannelService)
	fields.Add(cfgEngineName, c.Name)
	fields.Add(cfgEngineAbiCache, c.AbiCache)
	fields.Add(cfgEngineQueueCapacity, c.QueueCapacity)
}

func (c *Config) Configure(v *viper.Viper) error {
	c.Schemes = v.GetStringSlice(cfgEngineSchemes)
	c.ChannelService = v.GetString(cfgEngineChannelService)
	c.Name = v.GetString(cfgEngineName)
	c.AbiCache = v.GetBool(cfgEngineAbiCache)
	c.QueueCapacity = v.GetInt(cfgEngineQueueCapacity)

	if len(c.Schemes) == 0 {
		return config.ErrKeyNotSet{Key: cfgEngineSchemes}
	}
	for _, scheme := range c.Schemes {
		if scheme == "" || strings.ContainsAny(scheme, ":/") {
			return config.ErrInvalidValue{
				Key:          cfgEngineSchemes,
				InvalidValue: scheme,
				Values:       codec.DefaultSchemes,
			}
		}
	}

	if c.QueueCapacity <= 0 {
		return config.ErrInvalidValue{
			Key:          cfgEngineQueueCapacity,
			InvalidValue: v.GetString(cfgEngineQueueCapacity),
			Values:       []string{"a positive integer"},
		}
	}

	return nil
}

func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().StringSlice(cfgEngineSchemes, codec.DefaultSchemes,
		"uri schemes accepted for signing requests.")
	cmd.PersistentFlags().String(cfgEngineChannelService, "wss://cb.anchor.link",
		"base url of the push channel service on which sessions are created.")
	cmd.PersistentFlags().String(cfgEngineName, "esr-gateway",
		"name of the wallet sent to requesters when a session is linked.")
	cmd.PersistentFlags().Bool(cfgEngineAbiCache, false,
		"keep fetched contract abis until the wallet is reset.")
	cmd.PersistentFlags().Int(cfgEngineQueueCapacity, 64,
		"number of ordered network steps that can be waiting to run.")
	return nil
}

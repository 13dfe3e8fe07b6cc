package chain

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/log"
)

const (
	cfgChainURLs    = "chain.urls"
	cfgChainID      = "chain.id"
	cfgChainTimeout = "chain.timeout"
)

// Config is the configuration of the chain client
type Config struct {
	// URLs of the nodes the client may talk to. When more than one is
	// set the one with the lowest latency is used
	URLs []string

	// ID is the hex chain id the nodes are expected to be on
	ID string

	// Timeout of every request made to a node
	Timeout time.Duration
}

func (c *Config) Log(fields log.Fields) {
	fields.Add(cfgChainURLs, c.URLs)
	fields.Add(cfgChainID, c.ID)
	fields.Add(cfgChainTimeout, c.Timeout)
}

func (c *Config) Configure(v *viper.Viper) error {
	c.URLs = v.GetStringSlice(cfgChainURLs)
	c.ID = v.GetString(cfgChainID)
	c.Timeout = v.GetDuration(cfgChainTimeout)

	if len(c.URLs) == 0 {
		return config.ErrKeyNotSet{Key: cfgChainURLs}
	}

	return nil
}

func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().StringSlice(cfgChainURLs, nil,
		"urls of the chain nodes. The node with the lowest latency is selected.")
	cmd.PersistentFlags().String(cfgChainID, "",
		"hex id of the chain the nodes must be on. If not set it is taken from the node.")
	cmd.PersistentFlags().Duration(cfgChainTimeout, 10*time.Second,
		"timeout of every request made to a chain node.")
	return nil
}

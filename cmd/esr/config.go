package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/signing-gateway/callback"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/engine"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
	"github.com/oasislabs/signing-gateway/session"
)

const (
	cfgWalletPrivateKey = "wallet.private_key"
	cfgWalletAccount    = "wallet.account"
	cfgWalletPermission = "wallet.permission"
)

// WalletConfig is the account the wallet signs for and its key
type WalletConfig struct {
	Key        *ecc.PrivateKey
	Account    codec.Name
	Permission codec.Name
}

func (c *WalletConfig) Log(fields log.Fields) {
	fields.Add(cfgWalletAccount, c.Account)
	fields.Add(cfgWalletPermission, c.Permission)
	if c.Key != nil {
		fields.Add("wallet.public_key", c.Key.PublicKey().String())
	}
}

func (c *WalletConfig) Configure(v *viper.Viper) error {
	s := v.GetString(cfgWalletPrivateKey)
	if len(s) == 0 {
		return config.ErrKeyNotSet{Key: cfgWalletPrivateKey}
	}
	key, err := ecc.ParsePrivateKey(s)
	if err != nil {
		return config.ErrInvalidValue{
			Key:          cfgWalletPrivateKey,
			InvalidValue: "<redacted>",
			Values:       []string{"a PVT_K1_ or WIF private key"},
		}
	}
	c.Key = key

	for key, name := range map[string]*codec.Name{
		cfgWalletAccount:    &c.Account,
		cfgWalletPermission: &c.Permission,
	} {
		value := v.GetString(key)
		if len(value) == 0 {
			return config.ErrKeyNotSet{Key: key}
		}
		n, err := codec.ParseName(value)
		if err != nil {
			return config.ErrInvalidValue{Key: key, InvalidValue: value, Values: []string{"an account name"}}
		}
		*name = n
	}

	return nil
}

func (c *WalletConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String(cfgWalletPrivateKey, "",
		"private key the wallet signs with. Prefer setting it through the environment.")
	cmd.PersistentFlags().String(cfgWalletAccount, "",
		"account the wallet signs for.")
	cmd.PersistentFlags().String(cfgWalletPermission, "active",
		"permission of the account the wallet signs with.")
	return nil
}

// Config is the configuration of the esr binary
type Config struct {
	Logging  log.Config
	Metrics  metrics.Config
	Chain    chain.Config
	Session  session.Config
	Engine   engine.Config
	Callback callback.Config
	Wallet   WalletConfig
}

func (c *Config) Use() string       { return "esr" }
func (c *Config) EnvPrefix() string { return "ESR_GW" }

func (c *Config) Binders() []config.Binder {
	return []config.Binder{
		&c.Logging,
		&c.Metrics,
		&c.Chain,
		&c.Session,
		&c.Engine,
		&c.Callback,
		&c.Wallet,
	}
}

func (c *Config) Log(fields log.Fields) {
	c.Logging.Log(fields)
	c.Metrics.Log(fields)
	c.Chain.Log(fields)
	c.Session.Log(fields)
	c.Engine.Log(fields)
	c.Callback.Log(fields)
	c.Wallet.Log(fields)
}

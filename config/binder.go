package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Binder is a section of the gateway configuration, such as the
// session store or the chain endpoints. A section registers its keys
// as flags of the root command, and reads them back after the
// command line, the ESR_GW_ environment and the file were merged
type Binder interface {
	Bind(*viper.Viper, *cobra.Command) error
	Configure(*viper.Viper) error
}

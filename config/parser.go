package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is implemented by the top level configuration of a binary
type Config interface {
	Use() string
	EnvPrefix() string
	Binders() []Binder
}

// Parser owns the root command, the viper instance and the set of
// binders of a configuration
type Parser struct {
	Config Config

	file    *ConfigFile
	binders []Binder
	cmd     *cobra.Command
	v       *viper.Viper
}

// Command returns the root command the flags are bound to, so that
// binaries can attach subcommands to it
func (p *Parser) Command() *cobra.Command {
	return p.cmd
}

// Flags returns the persistent flag set of the root command
func (p *Parser) Flags() *pflag.FlagSet {
	return p.cmd.PersistentFlags()
}

// Configure reads back the sections from the parsed flags, the
// environment and the configuration file. With no sections every
// bound section is configured. The file is always read first
func (p *Parser) Configure(sections ...Binder) error {
	if err := p.file.Configure(p.v); err != nil {
		return err
	}

	if len(sections) == 0 {
		sections = p.binders[1:]
	}
	for _, c := range sections {
		if err := c.Configure(p.v); err != nil {
			return err
		}
	}

	return nil
}

// Parse parses the provided arguments and configures all sections.
// It is meant for callers that do not run the root command
func (p *Parser) Parse(args []string) error {
	if p.Flags().Parsed() {
		return ErrAlreadyParsed
	}

	if err := p.Flags().Parse(args); err != nil {
		return ErrParseFlags{err}
	}

	return p.Configure()
}

// Generate creates a Parser for the configuration. Every key can also
// be set as an environment variable with the configuration prefix,
// replacing `.` with `_`. For example, with prefix ESR_GW, key
// chain.url can be set with ESR_GW_CHAIN_URL
func Generate(config Config) (*Parser, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{Use: config.Use(), SilenceUsage: true}
	file := &ConfigFile{}

	var binders []Binder
	binders = append(binders, file)
	binders = append(binders, config.Binders()...)

	for _, c := range binders {
		if err := c.Bind(v, cmd); err != nil {
			return nil, fmt.Errorf("failed to bind flags %s", err.Error())
		}
	}

	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags %s", err.Error())
	}

	return &Parser{Config: config, file: file, binders: binders, cmd: cmd, v: v}, nil
}

package config

import (
	"os"
	"path"
	"strings"

	stderr "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const cfgConfigPath = "config.path"

// configFileTypes are the file formats viper reads the gateway
// configuration from
var configFileTypes = []string{"toml", "yaml", "yml", "json"}

// ConfigFile loads config.path. Values in the file sit below flags
// and environment variables
type ConfigFile struct {
	Path string
}

func (f *ConfigFile) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String(cfgConfigPath, "",
		"file with the gateway configuration ("+strings.Join(configFileTypes, ", ")+")")
	return nil
}

func (f *ConfigFile) Configure(v *viper.Viper) error {
	f.Path = v.GetString(cfgConfigPath)
	if len(f.Path) == 0 {
		return nil
	}

	ext := strings.TrimPrefix(path.Ext(f.Path), ".")
	if !isConfigFileType(ext) {
		values := make([]string, 0, len(configFileTypes))
		for _, t := range configFileTypes {
			values = append(values, "*."+t)
		}
		return ErrInvalidValue{Key: cfgConfigPath, InvalidValue: f.Path, Values: values}
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return stderr.Wrapf(err, "failed to open config file %s", f.Path)
	}
	defer func() { _ = file.Close() }()

	if ext == "yml" {
		ext = "yaml"
	}
	v.SetConfigType(ext)
	if err := v.ReadConfig(file); err != nil {
		return stderr.Wrapf(err, "failed to read config file %s", f.Path)
	}

	return nil
}

func isConfigFileType(ext string) bool {
	for _, t := range configFileTypes {
		if t == ext {
			return true
		}
	}
	return false
}

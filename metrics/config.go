package metrics

import (
	"time"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	cfgMetricsMode              = "metrics.mode"
	cfgMetricsPullAddr          = "metrics.pull.addr"
	cfgMetricsPullPort          = "metrics.pull.port"
	cfgMetricsPushAddr          = "metrics.push.addr"
	cfgMetricsPushJobName       = "metrics.push.job_name"
	cfgMetricsPushInstanceLabel = "metrics.push.instance_label"
	cfgMetricsPushInterval      = "metrics.push.interval"

	metricsModeNone = "none"
	metricsModePull = "pull"
	metricsModePush = "push"

	defaultPushInterval = 10 * time.Second
)

type Config struct {
	Mode              string
	PullAddr          string
	PullPort          string
	PushAddr          string
	PushJobName       string
	PushInstanceLabel string
	PushInterval      time.Duration
}

func (c *Config) Log(fields log.Fields) {
	fields.Add(cfgMetricsMode, c.Mode)
	fields.Add(cfgMetricsPullAddr, c.PullAddr)
	fields.Add(cfgMetricsPullPort, c.PullPort)
	fields.Add(cfgMetricsPushAddr, c.PushAddr)
	fields.Add(cfgMetricsPushJobName, c.PushJobName)
	fields.Add(cfgMetricsPushInstanceLabel, c.PushInstanceLabel)
	fields.Add(cfgMetricsPushInterval, c.PushInterval)
}

func (c *Config) Configure(v *viper.Viper) error {
	c.Mode = v.GetString(cfgMetricsMode)
	c.PullAddr = v.GetString(cfgMetricsPullAddr)
	c.PullPort = v.GetString(cfgMetricsPullPort)
	c.PushAddr = v.GetString(cfgMetricsPushAddr)
	c.PushJobName = v.GetString(cfgMetricsPushJobName)
	c.PushInstanceLabel = v.GetString(cfgMetricsPushInstanceLabel)
	c.PushInterval = v.GetDuration(cfgMetricsPushInterval)

	switch c.Mode {
	case "":
		c.Mode = metricsModeNone
	case metricsModeNone, metricsModePull:
	case metricsModePush:
		for key, value := range map[string]string{
			cfgMetricsPushAddr:          c.PushAddr,
			cfgMetricsPushJobName:       c.PushJobName,
			cfgMetricsPushInstanceLabel: c.PushInstanceLabel,
		} {
			if len(value) == 0 {
				return config.ErrKeyNotSet{Key: key}
			}
		}
	default:
		return config.ErrInvalidValue{
			Key:          cfgMetricsMode,
			InvalidValue: c.Mode,
			Values:       []string{metricsModeNone, metricsModePull, metricsModePush},
		}
	}

	return nil
}

func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String(cfgMetricsMode, metricsModeNone, "Prometheus metrics mode. Must be one of none, push, pull.")
	cmd.PersistentFlags().String(cfgMetricsPullAddr, "localhost", "Prometheus metrics address, on which the metrics service will live.")
	cmd.PersistentFlags().String(cfgMetricsPullPort, "7000", "Prometheus metrics port, by which service metrics will be made available.")
	cmd.PersistentFlags().String(cfgMetricsPushAddr, "", "Prometheus push gateway address")
	cmd.PersistentFlags().String(cfgMetricsPushJobName, "", "Prometheus push job name")
	cmd.PersistentFlags().String(cfgMetricsPushInstanceLabel, "", "Prometheus push instance label")
	cmd.PersistentFlags().Duration(cfgMetricsPushInterval, defaultPushInterval, "Prometheus push interval")

	return nil
}

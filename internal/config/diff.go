package config

// ConfigDiff describes what changed between two configs.
// Only the log level can be hot-reloaded; every other change needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the YAML keys of changed fields that only take
	// effect after a restart, in declaration order.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.transport", old.Server.Transport != new.Server.Transport)
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("sapling.binary", old.Sapling.Binary != new.Sapling.Binary)
	restart("sapling.timeout", old.Sapling.Timeout != new.Sapling.Timeout)
	restart("telemetry.service_name", old.Telemetry.ServiceName != new.Telemetry.ServiceName)
	restart("telemetry.metrics", old.Telemetry.Metrics != new.Telemetry.Metrics)

	return d
}

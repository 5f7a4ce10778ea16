package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is applied without a restart.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the changed sections that only take effect
	// after a restart, e.g. "recognizer".
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

	restart := func(section string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, section)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.servlet_path", old.Server.ServletPath != new.Server.ServletPath)
	restart("server.tls", !equalPtr(old.Server.TLS, new.Server.TLS))
	restart("auth", !equalAuth(old.Auth, new.Auth))
	restart("recognizer", old.Recognizer != new.Recognizer)
	restart("codec", old.Codec != new.Codec)
	restart("debug_store", old.DebugStore != new.DebugStore)
	restart("telemetry", old.Telemetry != new.Telemetry)

	return d
}

func equalAuth(a, b AuthConfig) bool {
	return a.BaseURL == b.BaseURL &&
		a.Timeout == b.Timeout &&
		a.SubscriptionRequired() == b.SubscriptionRequired()
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

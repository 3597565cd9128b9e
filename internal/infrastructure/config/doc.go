// Package config handles loading and validating SkyRoute configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//   - Conversion into transport and lifecycle settings
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Durations are YAML strings parsed by time.ParseDuration ("500ms", "1m").
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tcfg := cfg.MQTT.TransportConfig()
package config

// Package config loads application settings.
//
// Settings come from, lowest priority first: defaults in code, base.yaml,
// <environment>.yaml, local.yaml (development only) and environment
// variables. YAML, JSON and TOML files are accepted with the same keys:
//
//	config/
//	├── base.yaml
//	├── development.yaml
//	├── production.toml
//	└── local.json
//
// Typical use:
//
//	loader := config.NewLoader("config", config.Production)
//	cfg, err := loader.Load()
//
// In development a Watcher reloads the directory on change and hands the
// new configuration to registered callbacks.
package config

// Package config loads runtime configuration for the journal CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file given with --config (JSON, YAML or TOML).
//  3. JOURNAL_CLIENT_* environment variables.
//  4. Command-line flags, applied by the cli package.
//
// Example file:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "user_id": "3f0e...",
//	  "timeout": "10s"
//	}
package config

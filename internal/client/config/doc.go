// Package config loads runtime configuration for the vaultctl CLI.
//
// Sources & precedence
//
//  1. Built-in defaults from the `default` struct tags.
//  2. Optional JSON file selected via -c or -config; files ending in
//     .yaml or .yml are read as YAML with the same keys.
//  3. Command-line flags, which override earlier values.
//
// The merged result is checked against the `validate` struct tags.
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "5s" or integer
// nanoseconds:
//
//	{
//	  "database_path": "/home/me/.vaults/vaults.db",
//	  "captures_dir": "/home/me/.vaults/captures",
//	  "busy_timeout": "5s",
//	  "log_level": "debug",
//	  "sync_folder": "s3://team-drive/vaults",
//	  "purge_days": 45,
//	  "s3": {"region": "eu-central-1", "base_endpoint": "http://127.0.0.1:9000"}
//	}
//
// Environment variables are not read; the AWS SDK still falls back to its
// own credential chain when no static S3 keys are configured.
package config

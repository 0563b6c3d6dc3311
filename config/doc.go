// Package config provides configuration loading and validation for satchel.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (SATCHEL_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with SATCHEL_ prefix:
//   - server.port → SATCHEL_SERVER_PORT
//   - archive.max_input_size → SATCHEL_ARCHIVE_MAX_INPUT_SIZE
//   - storage.s3.bucket → SATCHEL_STORAGE_S3_BUCKET
//
// # Sizes
//
// archive.max_input_size takes a byte count or a human-readable size such
// as "800 MiB" or "2GB". Zero or a negative value removes the ceiling.
package config

// Package config handles loading and validating the lock bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file from the working directory or a parent
//   - Overriding with GRAYLOCK_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Lock service credentials and the JWT secret should be set via
//     environment variables or .env, never committed in YAML
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/graylock.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Locks.PollInterval)
package config

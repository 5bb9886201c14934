// Package config handles loading and validating domofon-core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT passwords, local API tokens, restored session
//     payloads) should be set via environment variables where possible
//   - The config file should have restricted permissions (0600) since it
//     may carry restored intercom session tokens
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Account.Phone)
package config

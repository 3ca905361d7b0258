// Package config provides configuration management for the OmokPang server.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values except the database URL have defaults suitable
// for development use.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config

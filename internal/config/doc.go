// Package config loads the aalink configuration file.
//
// The configuration is a versioned YAML document. Every field has a working
// default, so a missing file is not an error:
//
//	version: 1
//	log_level: info
//	transport: tcp
//	tcp:
//	  address: 192.168.1.20:5277
//	  listen: :5277
//	tls:
//	  certificate_file: /etc/aalink/hu.crt
//	  private_key_file: /etc/aalink/hu.key
//	discovery:
//	  enabled: true
//
// # Configuration File Location
//
// The file lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/aalink/config.yaml or $HOME/.config/aalink/config.yaml
//   - macOS: $HOME/.config/aalink/config.yaml
//   - Windows: %LOCALAPPDATA%\aalink\config.yaml
//
// # Usage Example
//
//	cfg, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sessionConfig, err := cfg.SessionConfig()
//
// Load validates what it reads; Save writes atomically through a temporary
// file and a rename.
package config

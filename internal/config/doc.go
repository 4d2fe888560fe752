// Package config handles configuration loading for the parlor client.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. A missing file is not an error: the client runs on defaults.
//
// # Configuration File
//
// Locations (first match wins):
//
//  1. The --config flag
//  2. Path from PARLOR_CONFIG environment variable
//  3. ./parlor.yaml (current directory)
//  4. $XDG_CONFIG_HOME/parlor/config.yaml, then config.toml
//
// # Environment Variable Expansion
//
//	gateway:
//	  base_url: "${ASSISTANT_API}"
//
// PARLOR_GATEWAY_URL overrides gateway.base_url after the file is read.
//
// # Configuration Sections
//
//	gateway:
//	  base_url: "http://localhost:8000/api"
//	  timeout: "60s"          # applied to every request by the HTTP client
//
//	credentials:
//	  backend: "file"         # file, sqlite, memory
//	  path: ""                # defaults inside $XDG_CONFIG_HOME/parlor
//
//	chat:
//	  web_search: false       # initial state of the web search toggle
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text, json
//
// The same keys are accepted in TOML:
//
//	[gateway]
//	base_url = "https://assistant.example.com/api"
//	timeout = "30s"
package config

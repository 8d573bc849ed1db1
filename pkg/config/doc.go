// Package config holds the process configuration of the carbon server.
//
// Values are resolved in increasing precedence: built-in defaults, an
// optional YAML file, CARBON_* environment variables and finally command-line
// flags (applied by the cli package). A minimal file:
//
//	port: 3000
//	dataDir: ./data
//	workspace: Default
//	logFile: ./log.txt
//	log:
//	  level: info
//	  format: text
//	  file: ./carbon.log
//	scripting:
//	  engine: lua
//	requestLog:
//	  capacity: 500
//	proxy:
//	  timeout: 0s
//	watch:
//	  enabled: true
//	  debounce: 200ms
package config

// Package config loads the htmlshot service configuration.
//
// A Config starts from Default, is overlaid by a YAML or JSON file (format
// chosen by extension), then by HTMLSHOT_* environment variables, and is
// finally checked by Validate. Command-line flags are applied by the CLI
// on top and recorded with SetSource.
//
// Example htmlshot.yaml:
//
//	server:
//	  port: 8080
//	  publicUrl: https://img.example.com
//	auth:
//	  apiKeys: [change-me]
//	renderer:
//	  url: http://localhost:3000
//	  timeout: 30s
//	  maxConcurrent: 4
//	storage:
//	  backend: file
//	  root: ./data/images
//	  keyPrefix: renders
//	log:
//	  level: info
//	  format: json
package config

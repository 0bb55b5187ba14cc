// Package config handles configuration loading for morph-gateway.
//
// Configuration is loaded from YAML files with environment variable
// expansion. Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${MORPH_JWT_SECRET}"
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dispatch:
//	  max_duration: "5m"
//
// The dispatch section selects the task-execution backend: "http" submits
// run-agent jobs to a remote task queue, "exec" spawns a local worker
// process with the payload on stdin.
package config

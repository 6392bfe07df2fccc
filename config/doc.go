// Package config loads engine settings and declarative workflow
// definitions from YAML, with environment variable overrides.
//
// Precedence: defaults, then the YAML file, then the environment.
package config

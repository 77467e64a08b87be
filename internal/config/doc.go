// Package config loads the quotefeed YAML configuration.
//
// ${VAR} references are expanded from the environment, which may first be
// populated from a .env file. Missing optional values get defaults before
// validation.
package config

// Package config resolves the runtime settings of the secretconf command from
// multiple sources (YAML settings file, environment variables, CLI flags) with
// precedence: CLI flags > YAML settings > Environment variables > Defaults.
package config

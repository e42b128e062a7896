// Package config resolves the service configuration.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Built-in defaults
//  2. An optional config file (JSONC or YAML, chosen by extension)
//  3. Environment variables
//
// Config files may be JSONC (JSON with Comments), so this package uses
// github.com/tidwall/jsonc to strip comments before parsing with the
// standard encoding/json library; .yaml/.yml files are parsed with
// gopkg.in/yaml.v3. Environment variables keep the names long-time users
// expect (HOST, PORT, HEADLESS, ...), including the legacy CDP_PORT pin
// that collapses the debug-port range to a single port.
package config

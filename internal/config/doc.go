// Package config loads and merges revbot configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (REVBOT_PROVIDER, REVBOT_MODEL, OPENAI_MODEL, etc.)
//  3. Config file ($XDG_CONFIG_HOME/revbot/config.yaml)
//  4. Built-in defaults
//
// Credentials are only ever read from the environment and are never written
// back by [Save].
package config

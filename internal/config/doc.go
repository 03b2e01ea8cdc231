// Package config loads and saves the AutoConnect settings file.
//
// Settings are stored as YAML in a platform-appropriate location:
//   - Linux: $XDG_CONFIG_HOME/autoconnect/config.yaml or $HOME/.config/autoconnect/config.yaml
//   - macOS: $HOME/.config/autoconnect/config.yaml
//   - Windows: %LOCALAPPDATA%\autoconnect\config.yaml
//
// A missing file is not an error: Load returns Default(), which carries the
// reference sizing (100ms tick, 60s run limit, 15s capture window, five
// workers, 64 KiB IPC region). Fields present in the file override the
// defaults one by one, so a file may set only what it needs:
//
//	version: 1
//	run_limit: 2m
//	ipc:
//	  enabled: true
//
// Command-line flags are applied on top of the loaded settings by the CLI.
package config

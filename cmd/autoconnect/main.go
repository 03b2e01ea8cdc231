// Autoconnect finds camera devices attached to the host's Ethernet
// adapters and configures the host to reach them.
//
// It listens on every Ethernet-capable adapter for the multicast
// announcements devices send, moves the adapter onto each announcer's /24
// subnet, probes the device, and enables jumbo frames on success. A
// controlling process can follow progress and send commands through a
// shared memory region.
//
// Usage:
//
//	autoconnect [command] [flags]
//
// Running without a command starts a discovery run. See 'autoconnect --help'.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/multisense/autoconnect/internal/config"
	"github.com/multisense/autoconnect/internal/ui"
	"github.com/multisense/autoconnect/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "autoconnect",
	Short: "Camera auto-discovery and network configuration",
	Long: `Discovers devices on the host's Ethernet adapters and configures the host
address and MTU so they can be reached.

Discovery needs CAP_NET_RAW and CAP_NET_ADMIN: raw capture sockets, ICMP
probes and interface address changes are all privileged.

If no command is specified, a discovery run starts with default flags.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default $XDG_CONFIG_HOME/autoconnect/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	Example: `  # Write ~/.config/autoconnect/config.yaml
  autoconnect config init

  # Overwrite an existing file
  autoconnect config init --force --config ./autoconnect.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Settings file written", ui.Field{Key: "Path", Value: path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out, err := settings.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
}

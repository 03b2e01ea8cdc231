//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/multisense/autoconnect/internal/capture"
	"github.com/multisense/autoconnect/internal/config"
	"github.com/multisense/autoconnect/internal/engine"
	"github.com/multisense/autoconnect/internal/ipc"
	"github.com/multisense/autoconnect/internal/logging"
	"github.com/multisense/autoconnect/internal/monitor"
	"github.com/multisense/autoconnect/internal/netif"
	"github.com/multisense/autoconnect/internal/probe"
	"github.com/multisense/autoconnect/internal/status"
	"github.com/multisense/autoconnect/internal/ui"
)

// Run command flags
var (
	useIPC     bool
	toConsole  bool
	logLevel   string
	runLimit   time.Duration
	workers    int
	jsonOutput bool

	commandWait time.Duration
	statusWait  time.Duration
)

// troubleshootDial is shown whenever a controller command cannot attach.
var troubleshootDial = []string{
	"Start the service with 'autoconnect run --ipc'",
	"The region is removed when a run ends; check the run is still active",
	"Use the same --config as the service so the region names match",
}

func init() {
	rootCmd.RunE = runDiscovery
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(setIPCmd)
	rootCmd.AddCommand(statusCmd)

	addRunFlags(rootCmd)
	addRunFlags(runCmd)

	for _, c := range []*cobra.Command{stopCmd, setIPCmd} {
		c.Flags().DurationVar(&commandWait, "wait", 2*time.Second, "How long to wait for the service to pick up the command")
	}
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status document")
	statusCmd.Flags().DurationVar(&statusWait, "wait", 0, "Wait up to this long for the next publish instead of reading the current document")
}

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVar(&useIPC, "ipc", false, "Publish status and accept commands over shared memory")
	c.Flags().BoolVar(&toConsole, "console", false, "Mirror the status log to the console")
	c.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	c.Flags().DurationVar(&runLimit, "run-limit", 0, "Stop after this long (default from settings, 60s)")
	c.Flags().IntVar(&workers, "workers", 0, "Worker pool size (default from settings)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover devices and configure adapters",
	Long: `Run one discovery window.

Every Ethernet adapter is watched for device announcements. For each
announcing address the adapter is given the x.y.z.2/24 host address, the
device is probed, and on success the adapter MTU is raised for jumbo frames.

The run ends when the run limit expires, a controller sends Stop, or the
process receives SIGINT/SIGTERM. Discovered devices are printed on exit.`,
	Example: `  # Default 60 second window
  sudo autoconnect run

  # Serve a controlling process over shared memory
  sudo autoconnect run --ipc --console

  # Short window with debug logging
  sudo autoconnect run --run-limit 20s --log-level debug`,
	RunE: runDiscovery,
}

// effectiveSettings loads the settings file and applies the flags the user set.
func effectiveSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("ipc") {
		settings.IPC.Enabled = useIPC
	}
	if flags.Changed("console") {
		settings.LogToConsole = toConsole
	}
	if flags.Changed("log-level") {
		settings.LogLevel = logLevel
	}
	if flags.Changed("run-limit") {
		settings.RunLimit = runLimit
	}
	if flags.Changed("workers") {
		settings.Workers = workers
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// consoleLevel picks the zap level: an explicit level wins, --console
// alone means info, otherwise the environment decides.
func consoleLevel(s *config.Settings) string {
	if s.LogLevel != "" {
		return s.LogLevel
	}
	if s.LogToConsole {
		return "info"
	}
	return ""
}

func ipcOptions(s *config.Settings) ipc.Options {
	return ipc.Options{
		ShmName:       s.IPC.ShmName,
		SemaphoreName: s.IPC.SemaphoreName,
		Size:          s.IPC.RegionSize,
	}
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	settings, err := effectiveSettings(cmd)
	if err != nil {
		return err
	}
	if err := logging.Initialize(consoleLevel(settings)); err != nil {
		return err
	}
	defer logging.Sync()

	var namer probe.Namer
	if settings.Probe.MDNSService != "" {
		namer = probe.NewMDNSNamer(settings.Probe.MDNSService, settings.Probe.MDNSTimeout)
	}

	svc, err := engine.New(settings, engine.Deps{
		Lister:       netif.NewLister(),
		Opener:       capture.NewOpener(),
		Configurator: netif.NewConfigurator(),
		Prober: probe.NewICMPProber(probe.Options{
			Timeout:    settings.Probe.Timeout,
			Count:      settings.Probe.Count,
			Privileged: settings.Probe.Privileged,
		}, namer),
		OpenChannel: func() (engine.StatusChannel, error) {
			ch, err := ipc.Open(ipcOptions(settings))
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
	})
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	ipcState := "disabled"
	if settings.IPC.Enabled {
		ipcState = filepath.Join(ipc.DefaultDir(), settings.IPC.ShmName)
	}
	p.PrintHeader("Device discovery", "autoconnect run",
		ui.Field{Key: "Run limit", Value: settings.RunLimit.String()},
		ui.Field{Key: "Workers", Value: strconv.Itoa(settings.Workers)},
		ui.Field{Key: "IPC", Value: ipcState},
		ui.Field{Key: "Run ID", Value: svc.RunID()},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}
	<-svc.Done()

	logging.Info("Discovery finished", zap.String("run_id", svc.RunID()))
	doc := svc.Document()
	if len(doc.Result) == 0 {
		p.PrintWarning("No devices found",
			ui.Field{Key: "Adapters", Value: strconv.Itoa(len(svc.Adapters()))},
			ui.Field{Key: "Log lines", Value: strconv.Itoa(len(doc.Log))},
		)
		p.Println(ui.RenderLog(doc.Log, ui.DefaultLogTail, p.Width()))
		return nil
	}
	p.PrintResults(doc.Result)
	return nil
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow a running service interactively",
	Long: `Attach to a service started with --ipc and show its results and log.

Keys: ↑/↓ select a result, enter or 0-9 sends SetIP, s sends Stop, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, settings, err := dial(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		doc, err := monitor.Run(cmd.Context(), client, settings.TickInterval)
		if err != nil {
			return err
		}
		if doc != nil {
			ui.NewPrinter(cmd.OutOrStdout()).PrintResults(doc.Result)
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running service to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, "Stop", status.EncodeStop())
	},
}

var setIPCmd = &cobra.Command{
	Use:   "set-ip <index>",
	Short: "Point an adapter at a discovered device",
	Long: `Ask a running service to reassign the host address for one result.

The index is the '#' column printed by 'autoconnect status'. The adapter of
that result gets the x.y.z.2/24 address on its first device's subnet and
the jumbo MTU.`,
	Example: `  autoconnect set-ip 0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil || index < 0 {
			return fmt.Errorf("invalid result index %q", args[0])
		}
		return sendCommand(cmd, fmt.Sprintf("SetIP %d", index), status.EncodeSetAddress(index))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the latest status document of a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := dial(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		var data []byte
		if statusWait > 0 {
			ctx, cancel := context.WithTimeout(cmd.Context(), statusWait)
			defer cancel()
			data, err = client.ReadStatus(ctx)
		} else {
			data, err = client.Snapshot()
		}
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}
		if len(data) == 0 {
			return errors.New("service has not published a status document yet")
		}

		doc, err := status.ParseDocument(data)
		if err != nil {
			return err
		}
		if jsonOutput {
			out, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintDocument(doc, ui.DefaultLogTail)
		return nil
	},
}

func dial(cmd *cobra.Command) (*ipc.Client, *config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	client, err := ipc.Dial(ipcOptions(settings))
	if err != nil {
		ui.NewPrinter(cmd.ErrOrStderr()).PrintFailure("Cannot attach to the service", err, troubleshootDial...)
		return nil, nil, fmt.Errorf("no running service: %w", err)
	}
	return client, settings, nil
}

// sendCommand writes payload and waits for the service to consume it.
func sendCommand(cmd *cobra.Command, label string, payload []byte) error {
	client, _, err := dial(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	p := ui.NewPrinter(cmd.OutOrStdout())
	if client.Pending() {
		return errors.New("a previous command has not been picked up yet")
	}
	if err := client.SendCommand(payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", label, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandWait)
	defer cancel()
	if err := awaitIngest(ctx, client, 50*time.Millisecond); err != nil {
		p.PrintWarning(label+" written but not yet picked up",
			ui.Field{Key: "Waited", Value: commandWait.String()},
		)
		return nil
	}
	p.PrintSuccess(label + " delivered")
	return nil
}

type pendingChecker interface {
	Pending() bool
}

// awaitIngest polls until the service has cleared the inbound half.
func awaitIngest(ctx context.Context, c pendingChecker, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for c.Pending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

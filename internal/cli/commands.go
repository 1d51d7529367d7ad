package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"runner-launcher/internal/autostart"
	"runner-launcher/internal/config"
	"runner-launcher/internal/handoff"
	"runner-launcher/internal/launch"
	"runner-launcher/internal/logging"
	"runner-launcher/internal/singleinstance"
)

var appVersion = "0.1.0"

func SetVersion(v string) {
	appVersion = v
}

// WindowOptions configures the window the launcher creates.
type WindowOptions struct {
	// StartHidden keeps the window hidden until a later launch reveals it.
	StartHidden bool

	// Quit ends the launcher. The window calls it when it is closed.
	Quit func()
}

// WindowFactory builds the window collaborator. It is only called when
// the launcher runs, and constructing it must not create any UI; that
// happens in Init, on the primary only.
type WindowFactory func(opts WindowOptions) launch.UI

func Execute(newWindow WindowFactory) error {
	return NewRootCmd(newWindow).Execute()
}

// NewRootCmd builds the command tree on the process-wide configuration.
func NewRootCmd(newWindow WindowFactory) *cobra.Command {
	return newRootCmd(config.Get(), config.LoadError(), config.Save, newWindow)
}

func newRootCmd(v *viper.Viper, loadErr error, save func(dir string) error, newWindow WindowFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runner",
		Short: "Runner - floating search launcher",
		Long: "Runner opens a floating search window. Launching it again while it is\n" +
			"running brings the existing window to the front instead of starting a\n" +
			"second copy.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			useErr := loadErr
			if p, err := config.Load(v).Paths(); err == nil {
				useErr = config.Use(v, p.Dir)
			}
			logging.Setup(v.GetString(config.KeyLogLevel), cmd.ErrOrStderr())
			if useErr != nil {
				log.Warn().Err(useErr).Msg("Ignoring unreadable config file")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd, v, newWindow)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("bundle-id", v.GetString(config.KeyBundleID), "Application directory name under the support root")
	pf.String("support-root", "", "Override the application support root")
	pf.String("log-level", v.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	_ = v.BindPFlag(config.KeyBundleID, pf.Lookup("bundle-id"))
	_ = v.BindPFlag(config.KeySupportRoot, pf.Lookup("support-root"))
	_ = v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))

	f := rootCmd.Flags()
	f.Duration("connect-timeout", handoff.DefaultConnectTimeout, "Timeout for reaching a running instance")
	f.Bool("rebind-on-remove", true, "Recreate the hand-off socket if its file is deleted")
	f.Bool("silent", false, "Start with the window hidden")
	_ = v.BindPFlag(config.KeyConnectTimeout, f.Lookup("connect-timeout"))
	_ = v.BindPFlag(config.KeyRebindOnRemove, f.Lookup("rebind-on-remove"))
	_ = v.BindPFlag(config.KeyStartHidden, f.Lookup("silent"))

	rootCmd.AddCommand(
		newPathsCmd(v),
		newStatusCmd(v),
		newShowCmd(v),
		newConfigCmd(v, save),
		newAutostartCmd(v),
		newVersionCmd(),
	)

	return rootCmd
}

func runLauncher(cmd *cobra.Command, v *viper.Viper, newWindow WindowFactory) error {
	settings := config.Load(v)
	p, err := settings.Paths()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	role, err := launch.Run(ctx, launch.Options{
		Paths:         p,
		Notify:        settings.NotifyOptions(),
		Rebind:        settings.RebindOnRemove,
		WatchInterval: settings.WatchInterval,
		Logger:        log.Logger,
	}, newWindow(WindowOptions{StartHidden: settings.StartHidden, Quit: quit}))
	if err != nil {
		return err
	}

	log.Debug().Stringer("role", role).Msg("Launcher exiting")
	return nil
}

func newPathsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the support directory, lock file and socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(v).Paths()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "directory: %s\n", p.Dir)
			fmt.Fprintf(cmd.OutOrStdout(), "lock:      %s\n", p.LockFile)
			fmt.Fprintf(cmd.OutOrStdout(), "socket:    %s\n", p.Socket)
			fmt.Fprintf(cmd.OutOrStdout(), "config:    %s\n", p.ConfigFile())
			if err := p.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			return nil
		},
	}
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a launcher instance is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(v).Paths()
			if err != nil {
				return err
			}
			held, err := singleinstance.IsHeld(p.LockFile)
			if err != nil {
				return err
			}

			state := "not running"
			if held {
				state = "running"
			}
			socket := "absent"
			if _, err := os.Stat(p.Socket); err == nil {
				socket = "present"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Instance: %s\n", state)
			fmt.Fprintf(cmd.OutOrStdout(), "Socket:   %s (%s)\n", p.Socket, socket)
			return nil
		},
	}
}

func newShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Bring the running instance's window to the front",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.Load(v)
			p, err := settings.Paths()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), settings.ConnectTimeout+settings.ConnectRetryWindow+time.Second)
			defer cancel()
			if err := handoff.Notify(ctx, p.Socket, settings.NotifyOptions()); err != nil {
				return fmt.Errorf("no running instance reachable: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signal sent")
			return nil
		},
	}
}

func newConfigCmd(v *viper.Viper, save func(dir string) error) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := config.NormalizeKey(args[0])
			if !config.IsKnownKey(key) {
				return fmt.Errorf("unknown config key: %s", args[0])
			}
			value := args[1]
			p, err := config.Load(v).Paths()
			if err != nil {
				return err
			}

			v.Set(key, value)
			if err := save(p.Dir); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Config set: %s = %s\n", key, value)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration")
			fmt.Fprintln(cmd.OutOrStdout(), "─────────────")
			for _, key := range config.KnownKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-21s %v\n", key+":", v.Get(key))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-21s %s\n", "config_file:", v.ConfigFileUsed())
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := config.NormalizeKey(args[0])
			if !config.IsKnownKey(key) {
				return fmt.Errorf("unknown config key: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.GetString(key))
			return nil
		},
	}

	configCmd.AddCommand(setCmd, showCmd, getCmd)
	return configCmd
}

func newAutostartCmd(v *viper.Viper) *cobra.Command {
	autostartCmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start the launcher at login",
	}

	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Register the launcher to start at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			label := v.GetString(config.KeyBundleID)
			if err := autostart.Enable(label); err != nil {
				return fmt.Errorf("failed to enable autostart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled: %s\n", autostart.Path(label))
			return nil
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Stop starting the launcher at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Disable(v.GetString(config.KeyBundleID)); err != nil {
				return fmt.Errorf("failed to disable autostart: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether autostart is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := autostart.IsEnabled(v.GetString(config.KeyBundleID))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Autostart: %v\n", enabled)
			return nil
		},
	}

	autostartCmd.AddCommand(enableCmd, disableCmd, statusCmd)
	return autostartCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Runner v%s\n", appVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

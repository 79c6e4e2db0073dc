// Package main provides the mrlift binary: a QA console for exercising the
// Mr. Lift virtual assistant.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comigor/mrlift-console/internal/app"
	"github.com/comigor/mrlift-console/internal/classifier"
	"github.com/comigor/mrlift-console/internal/config"
	"github.com/comigor/mrlift-console/internal/console"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/logger"
	"github.com/comigor/mrlift-console/internal/mcpserver"
)

const (
	Version   = "2.0.0"
	BuildTime = "dev"
	appName   = "mrlift"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "QA console for the Mr. Lift virtual assistant",
		Long: `mrlift lets a tester hold a conversation with the Mr. Lift assistant,
replay scripted scenarios, tag replies with heuristics, fill in an
evaluation checklist and export the whole session as JSON.

Running it without a subcommand starts the interactive console.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML); defaults to $CONFIG_PATH or ./config.yaml")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")

	cmd.AddCommand(
		chatCmd(&flags),
		runCmd(&flags),
		classifyCmd(),
		exportCmd(&flags),
		importCmd(&flags),
		mcpCmd(&flags),
		versionCmd(),
	)
	return cmd
}

func chatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, *flags)
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		export    bool
		exportDir string
	)
	cmd := &cobra.Command{
		Use:   "run SCENARIO",
		Short: "Run a scripted scenario headless and print the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *flags, func(ctx context.Context, a *app.App) error {
				runErr := a.RunScenario(ctx, args[0])
				printTranscript(cmd.OutOrStdout(), a)
				if export && len(a.Engine.Snapshot().Messages) > 0 {
					path, err := a.ExportSession(exportDir)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
				}
				return runErr
			})
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "Export the session when the scenario ends")
	cmd.Flags().StringVar(&exportDir, "dir", "", "Export directory; defaults to export.dir")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Print the heuristic tags for a reply text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags := classifier.Classify(strings.Join(args, " "))
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tags")
				return nil
			}
			for _, t := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", t.Kind, t.Label)
			}
			return nil
		},
	}
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the persisted session to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *flags, func(_ context.Context, a *app.App) error {
				path, err := a.ExportSession(dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory; defaults to export.dir")
	return cmd
}

func importCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the persisted session with an exported one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *flags, func(ctx context.Context, a *app.App) error {
				if err := a.Import(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d messages\n", len(a.Engine.Snapshot().Messages))
				return nil
			})
		},
	}
}

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the console operations as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *flags, func(_ context.Context, a *app.App) error {
				return mcpserver.New(a, Version).ServeStdio()
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func runChat(cmd *cobra.Command, flags globalFlags) error {
	return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
		return console.New(a, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
	})
}

// withApp loads configuration, sends logs to stderr and runs fn over a
// freshly opened session.
func withApp(cmd *cobra.Command, flags globalFlags, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger.Configure(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.L.Warn("close session", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func printTranscript(w io.Writer, a *app.App) {
	st := a.Engine.Snapshot()
	for _, m := range st.Messages {
		fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(m.Role)), m.Content)
		if m.Role != domain.RoleAssistant {
			continue
		}
		for _, t := range a.Classifier.Classify(m.Content) {
			fmt.Fprintf(w, "  [%s] %s\n", t.Kind, t.Label)
		}
		if m.Meta != nil {
			fmt.Fprintf(w, "  %s\n", m.Meta.String())
		}
	}
	if st.Err != "" {
		fmt.Fprintln(w, st.Err)
	}
}

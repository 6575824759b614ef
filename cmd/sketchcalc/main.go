package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"cogentcore.org/core/base/errors"
	"github.com/calc33/Sketch.NET-sub000/packages/formula"
	"github.com/spf13/cobra"
)

// app carries what the subcommands share once the root command has loaded
// the configuration.
type app struct {
	configPath string
	logLevel   string

	stderr io.Writer
	env    *formula.Environment
	logger *slog.Logger
}

func main() {
	if errors.Log(newRootCmd(os.Stdout, os.Stderr).Execute()) != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}
	rootCmd := &cobra.Command{
		Use:   "sketchcalc",
		Short: "Evaluate sketch formulas from the command line",
		Long: `sketchcalc evaluates drawing formulas outside an editor: single
expressions with eval, or whole documents of shapes with run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "sketch.yaml", "engine configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")

	rootCmd.AddCommand(a.evalCmd(), a.runCmd())
	return rootCmd
}

// setup loads the configuration, installs the logger and builds the
// environment every subcommand evaluates in.
func (a *app) setup() error {
	cfg, err := formula.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, err := formula.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	formula.SetLogger(a.logger)

	a.env, err = formula.NewEnvironment(cfg, formula.WithRegistrySetup(registerDrawingEnums))
	if err != nil {
		return err
	}
	a.logger.Debug("environment ready", "config", a.configPath, "default_unit", cfg.DefaultUnit)
	return nil
}

// registerDrawingEnums adds the enumerations drawing documents refer to
func registerDrawingEnums(r *formula.Registry) error {
	if err := r.RegisterEnum("LineStyle", "Solid", "Dashed", "Dotted"); err != nil {
		return fmt.Errorf("register LineStyle: %w", err)
	}
	return r.RegisterEnum("TextAlign", "Left", "Center", "Right")
}

// describe renders a read result the way the editor shows it
func describe(v formula.Value, err error) string {
	if err != nil {
		if code := formula.CodeOf(err); code != 0 {
			return fmt.Sprintf("%s %v", formula.ErrorMapper[code], err)
		}
		return "error: " + err.Error()
	}
	return fmt.Sprintf("%s (%s)", v, v.Kind())
}

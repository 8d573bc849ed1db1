package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/carbonmock/carbon/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// options holds the flag values shared by serve and validate.
type options struct {
	configFile string
	port       int
	dataDir    string
	workspace  string
	logFile    string
	logLevel   string
	logFormat  string
	engine     string
	noWatch    bool
	jsonOutput bool
}

// NewRootCommand builds the carbon command tree. Running it without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "carbon",
		Short: "carbon is an HTTP mock and service virtualization server",
		Long: `carbon serves mock HTTP responses from a directory of workspace, project,
service and api definitions. Each matched request is answered by a static body,
a script, a mustache template, or by forwarding it to a real downstream.

Configuration can be provided via flags, CARBON_* environment variables, or a
YAML configuration file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output command results in JSON format")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", config.DefaultDataDir, "Configuration data directory")
	root.PersistentFlags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace to serve (default \"Default\")")
	root.PersistentFlags().StringVar(&opts.engine, "engine", "", "Script engine: lua or expr (default \"lua\")")
	bindServeFlags(root, opts)

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newVersionCommand(opts))
	return root
}

// Execute runs the command tree with os.Args and exits non-zero on error.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveConfig loads the configuration and applies explicitly set flags on
// top of it.
func resolveConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if flags.Changed("workspace") {
		cfg.Workspace = opts.workspace
	}
	if flags.Changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("engine") {
		cfg.Scripting.Engine = opts.engine
	}
	if flags.Changed("no-watch") && opts.noWatch {
		cfg.Watch.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

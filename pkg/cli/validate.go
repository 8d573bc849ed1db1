package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/cli/internal/output"
	"github.com/carbonmock/carbon/pkg/engine"
	"github.com/carbonmock/carbon/pkg/store/file"
	"github.com/carbonmock/carbon/pkg/workspace"
	"github.com/spf13/cobra"
)

// errValidationFailed makes validate exit non-zero after printing its report.
var errValidationFailed = errors.New("validation failed")

// ValidateOutput is the JSON form of the validate report.
type ValidateOutput struct {
	Workspace   string              `json:"workspace"`
	Apis        int                 `json:"apis"`
	Diagnostics []engine.Diagnostic `json:"diagnostics"`
}

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compile the active workspace and report errors without serving",
		Long: `Load every api of the active workspace, compile its url patterns, matchers,
scripts and templates, and list everything that failed. Exits non-zero when
anything failed to compile.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DataDir); err != nil {
				return fmt.Errorf("data directory: %w", err)
			}
			scripts, err := script.New(cfg.Scripting.Engine)
			if err != nil {
				return err
			}

			cache := engine.NewCache(file.New(cfg.DataDir), workspace.NewSelector(cfg.Workspace), scripts)
			if err := cache.Load(cmd.Context()); err != nil {
				return err
			}
			snap := cache.Snapshot()
			report := ValidateOutput{
				Workspace:   snap.Workspace,
				Apis:        len(snap.Entries()),
				Diagnostics: snap.Diagnostics(),
			}
			if report.Diagnostics == nil {
				report.Diagnostics = []engine.Diagnostic{}
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := output.JSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Workspace %s: %d apis, %d compile error(s)\n", report.Workspace, report.Apis, len(report.Diagnostics))
				if len(report.Diagnostics) > 0 {
					tw := output.Table(out)
					fmt.Fprintln(tw, "PROJECT\tSERVICE\tAPI\tPROVIDER\tSTAGE\tERROR")
					for _, d := range report.Diagnostics {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Project, d.Service, d.Api, d.Provider, d.Stage, d.Error)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
				}
			}

			if len(report.Diagnostics) > 0 {
				return errValidationFailed
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "update [lockfile]",
		Short: "Rewrite a lockfile to download from a registry mirror",
		Long: `Rewrite every registry entry of an npm lockfile (lockfileVersion 1) so that
its resolved URL and integrity come from the target registry.

Entries the target registry does not know are left unchanged and reported.
Any other failure leaves the lockfile untouched.`,
		Example: `  lockmirror update
  lockmirror update -r https://npm.example.com/repository/npm-proxy
  lockmirror update frontend/package-lock.json -o - > mirrored.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			return c.runUpdate(cmd, cfg, output, dryRun)
		},
	}

	cmd.Flags().StringP("registry", "r", "", "target registry URL (default https://registry.npmjs.org)")
	cmd.Flags().Int("concurrency", 0, "maximum concurrent registry requests (default 50)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of in place (- for stdout)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")

	return cmd
}

func (c *CLI) runUpdate(cmd *cobra.Command, cfg Config, output string, dryRun bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	logger.Debug("resolved config", "config", cfg)

	data, err := os.ReadFile(cfg.Lockfile)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read lockfile")
	}

	runner, err := c.newRunner(cfg)
	if err != nil {
		return err
	}

	// Status lines go to stderr when the lockfile itself goes to stdout.
	w := cmd.OutOrStdout()
	if output == "-" {
		w = cmd.ErrOrStderr()
	}

	prog := newProgress(logger)
	spinner := startSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Rewriting %s...", cfg.Lockfile))
	out, report, err := runner.UpdateLockfile(ctx, data, runner.Options().Registry)
	spinner.Stop()
	if err != nil {
		return err
	}

	if !report.Processed {
		printWarning(w, "lockfileVersion %d is not supported, %s left unchanged", report.LockfileVersion, cfg.Lockfile)
		switch {
		case dryRun, output == "", output == cfg.Lockfile:
			return nil
		case output == "-":
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
		if err := writeFileAtomic(output, out); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printFile(w, output)
		return nil
	}

	for _, s := range report.Skipped {
		printWarning(w, "%s@%s: %s", s.Path, s.Version, s.Reason)
	}

	switch {
	case dryRun:
		printReport(w, report)
		if report.Changed {
			printInfo(w, "Dry run, %s not written", cfg.Lockfile)
		} else {
			printInfo(w, "%s is already up to date", cfg.Lockfile)
		}
		return nil

	case output == "-":
		if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return err
		}

	default:
		dest := cfg.Lockfile
		if output != "" {
			dest = output
		}
		if !report.Changed && dest == cfg.Lockfile {
			printSuccess(w, "%s is already up to date", dest)
			break
		}
		if err := writeFileAtomic(dest, out); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		printSuccess(w, "Rewrote %s", dest)
		printFile(w, dest)
	}

	printReport(w, report)
	prog.done("Update complete")
	return nil
}

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// ErrMismatch is returned by the check command when the lockfile does not
// match the registry. main maps it to a non-zero exit status.
var ErrMismatch = errors.New(errors.ErrCodeInvalidInput, "lockfile does not match registry")

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [lockfile]",
		Short: "Verify that a lockfile downloads only from a registry",
		Long: `Verify that every registry entry of an npm lockfile resolves under the target
registry. No network requests are made. Every mismatching entry is listed and
the command exits non-zero if there is any.`,
		Example: `  lockmirror check
  lockmirror check -r https://npm.example.com/repository/npm-proxy package-lock.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			return c.runCheck(cmd, cfg)
		},
	}

	cmd.Flags().StringP("registry", "r", "", "target registry URL (default https://registry.npmjs.org)")

	return cmd
}

func (c *CLI) runCheck(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	data, err := os.ReadFile(cfg.Lockfile)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read lockfile")
	}

	runner, err := c.newRunner(cfg)
	if err != nil {
		return err
	}
	reg := runner.Options().Registry

	res, err := runner.CheckLockfile(ctx, data, reg)
	if err != nil {
		return err
	}

	if !res.Processed {
		printWarning(w, "lockfileVersion %d is not supported, nothing to check", res.LockfileVersion)
		return nil
	}
	if res.OK {
		printSuccess(w, "All %d entries resolve under %s", res.Checked, StyleLink.Render(reg))
		return nil
	}

	printError(w, "%d of %d entries resolve outside %s", len(res.Mismatches), res.Checked, StyleLink.Render(reg))
	for _, m := range res.Mismatches {
		printMismatch(w, m.Path, m.Version, m.Resolved)
	}
	return ErrMismatch
}

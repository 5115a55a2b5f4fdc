package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "lockmirror points npm lockfiles at a registry mirror",
		Long: `lockmirror rewrites the resolved URLs and integrity hashes of an npm
package-lock.json (lockfileVersion 1) so that every registry package is
downloaded from another registry, such as an internal mirror.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/lockmirror/config.toml)")

	// Register all subcommands
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Package cli implements intakectl, the operator tool for the intake
// gateway's credential store.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		metaDB string
		output string
	)

	rootCmd := &cobra.Command{
		Use:   "intakectl",
		Short: "Manage intake gateway credentials",
		Long: "Command-line tool for the intake gateway's credential store.\n" +
			"Changes are persisted to the SQLite store and picked up by the gateway on its next start.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Precedence: flag > env > default.
			if err := applyEnv(cmd.Flags(), "meta-db", "META_DB_PATH"); err != nil {
				return err
			}
			if err := applyEnv(cmd.Flags(), "output", "INTAKECTL_OUTPUT"); err != nil {
				return err
			}
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&metaDB, "meta-db", "intake_meta.sqlite", "Path to the SQLite credential store (env META_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	store := func() string { return metaDB }
	rootCmd.AddCommand(newGrantCmd(store))
	rootCmd.AddCommand(newRevokeCmd(store))
	rootCmd.AddCommand(newListCmd(store))
	rootCmd.AddCommand(newSeedCmd(store))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "intakectl version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// applyEnv sets flag name from env when it was not given on the command line.
func applyEnv(flags *pflag.FlagSet, name, env string) error {
	if flags.Changed(name) {
		return nil
	}
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	if err := flags.Set(name, v); err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IacopoSb/AnonimaData/cmd/cli/commands"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Anonymize tabular datasets",
		Long: `A command-line interface for anonymizing tabular datasets with
k-anonymity, l-diversity and differential privacy, and for checking
that anonymized data meets its privacy guarantees.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return global.Load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&global.ConfigFile, "config", "", "config file (default is $HOME/.anonimadata/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&global.EnvFile, "env-file", ".env", "environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(commands.NewAnonymizeCmd(global))
	rootCmd.AddCommand(commands.NewValidateCmd(global))
	rootCmd.AddCommand(commands.NewVerifyCmd(global))
	rootCmd.AddCommand(commands.NewMethodsCmd())
	rootCmd.AddCommand(commands.NewConfigCmd(global))

	return rootCmd
}

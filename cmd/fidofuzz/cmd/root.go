package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fidofuzz",
	Short: "Corpus tooling for the get-assertion fuzzing harness",
	Long: `fidofuzz inspects and manipulates corpus records of the
get-assertion fuzzing harness: decode and dump a record, write the
canonical seed record, or mutate records offline.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/splitsecure/go-fido-fuzz/param"
)

var seedCmd = &cobra.Command{
	Use:   "seed <dir>",
	Short: "Write the canonical example record into a corpus directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(args[0], 0o755); err != nil {
			return err
		}

		buf := make([]byte, param.MaxCorpusLen)
		n, err := param.Encode(param.Dummy(), buf)
		if err != nil {
			return fmt.Errorf("encoding canonical record: %w", err)
		}

		path := filepath.Join(args[0], "canonical")
		if err := os.WriteFile(path, buf[:n], 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

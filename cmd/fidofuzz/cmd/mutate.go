package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/splitsecure/go-fido-fuzz/param"
)

var (
	mutateSeed  int64
	mutateCount int
)

var mutateCmd = &cobra.Command{
	Use:   "mutate <file> <dir>",
	Short: "Mutate a corpus record offline",
	Long: `mutate decodes a corpus record, applies the harness mutator
count times with consecutive seeds, and writes each resulting record
into the output directory under a fresh ksuid name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args[1], 0o755); err != nil {
			return err
		}

		for i := 0; i < mutateCount; i++ {
			out := param.Mutate(data, param.MaxCorpusLen, mutateSeed+int64(i))
			if out == nil {
				return fmt.Errorf("seed %d produced no mutation", mutateSeed+int64(i))
			}
			path := filepath.Join(args[1], ksuid.New().String())
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(out))
		}
		return nil
	},
}

func init() {
	mutateCmd.Flags().Int64VarP(&mutateSeed, "seed", "s", 1, "First mutation seed")
	mutateCmd.Flags().IntVarP(&mutateCount, "count", "n", 1, "Number of mutants to produce")
	rootCmd.AddCommand(mutateCmd)
}

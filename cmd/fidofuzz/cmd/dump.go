package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitsecure/go-fido-fuzz/param"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Decode a corpus record and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		p, err := param.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "uv:         %d\n", p.UV)
		fmt.Fprintf(out, "up:         %d\n", p.UP)
		fmt.Fprintf(out, "u2f:        %d\n", p.U2F)
		fmt.Fprintf(out, "type:       %d\n", p.Type)
		fmt.Fprintf(out, "cred count: %d\n", p.CredCount)
		fmt.Fprintf(out, "ext:        0x%08x\n", uint32(p.Ext))
		fmt.Fprintf(out, "seed:       %d\n", p.Seed)
		fmt.Fprintf(out, "rp id:      %q\n", p.RPID)
		fmt.Fprintf(out, "pin:        %q\n", p.PIN)
		fmt.Fprintf(out, "cdh:        %s\n", hex.EncodeToString(p.CDH))
		fmt.Fprintf(out, "cred:       %s\n", hex.EncodeToString(p.Cred))
		fmt.Fprintf(out, "es256:      %s\n", hex.EncodeToString(p.ES256))
		fmt.Fprintf(out, "rs256:      %s\n", hex.EncodeToString(p.RS256))
		fmt.Fprintf(out, "eddsa:      %s\n", hex.EncodeToString(p.EdDSA))
		fmt.Fprintf(out, "wire data:  %d bytes\n", len(p.WireData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

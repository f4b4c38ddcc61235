package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erc7824/nitrolite/ethsigner/pkg/keys"
)

const formatFlag = "format"

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [-f FORMAT] INPUT OUTPUT",
		Short: "Convert an external key file into the portable key format",
		Long: `Reads a JSON key document {"private_key": "0x..."} from INPUT and writes
the base64 encoding of the raw key bytes to OUTPUT with mode 0600.
OUTPUT is replaced atomically. The 'raw' format is recognized but not supported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cmd.Flags().GetString(formatFlag)
			if err != nil {
				return err
			}
			format, err := keys.ParseFormat(name)
			if err != nil {
				return err
			}

			if err := keys.Import(args[0], args[1], format); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported key to %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringP(formatFlag, "f", keys.FormatJSON.String(), "input key format (json or raw)")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hubble-cli/internal/catalog"
)

var (
	optionsTarget string
	optionsFormat string
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List data types and instruments available for a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("options"); err != nil {
			return err
		}

		opts, err := newCatalog(newBreakers()).Options(ctx, optionsTarget)
		if err != nil {
			return eris.Wrap(err, "options")
		}

		switch optionsFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(opts)
		case "", "table":
			formatOptions(cmd.OutOrStdout(), opts)
			return nil
		default:
			return eris.Errorf("unknown format %q (want table or json)", optionsFormat)
		}
	},
}

// formatOptions writes one row per data type with its instruments.
func formatOptions(out io.Writer, opts *catalog.Options) {
	if opts.Fallback {
		_, _ = fmt.Fprintf(out, "No observations found for %s; showing the standard lists.\n", opts.Target)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATA_TYPE\tINSTRUMENTS")
	_, _ = fmt.Fprintln(w, "---------\t-----------")
	for _, dt := range opts.DataTypes {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", dt, strings.Join(opts.InstrumentsFor(dt), ", "))
	}
	_ = w.Flush()
}

func init() {
	optionsCmd.Flags().StringVar(&optionsTarget, "target", "trappist-1", "target name resolved by the archive")
	optionsCmd.Flags().StringVar(&optionsFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(optionsCmd)
}

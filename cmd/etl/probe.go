package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"transportetl/internal/probe"
)

func getProbeCmd(a *app) *cobra.Command {
	var (
		maxBytes int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "probe [path]",
		Short: "Sample the raw file and check it against the cleaning rules",
		Long: `Read the head of the raw CSV (raw_path unless a path is given) and print
each column with its inferred type, missing-value count and, for the
coerced columns, how many sampled values would fail coercion.

Exits non-zero when a required column is absent or a sampled value would
fail coercion.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.RawPath
			if len(args) == 1 {
				path = args[0]
			}
			res, err := probe.Probe(cmd.Context(), path, probe.Options{
				MaxBytes: maxBytes,
				Encoding: a.cfg.Parser.Encoding,
				Comma:    a.cfg.Parser.CommaRune(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%s: sampled %s, %d rows (%d skipped)\n",
					res.Path, humanize.Bytes(uint64(res.Bytes)), res.Rows, res.Skipped)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "COLUMN\tTYPE\tMISSING\tEXPECTED\tBAD")
				for _, c := range res.Columns {
					bad := ""
					if c.BadValues > 0 {
						bad = fmt.Sprintf("%d (%q)", c.BadValues, c.FirstBad)
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", c.Name, c.Type, c.Missing, c.Expected, bad)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if len(res.Absent) > 0 {
					fmt.Fprintf(out, "absent columns: %s\n", strings.Join(res.Absent, ", "))
				}
			}
			if !res.OK() {
				return errors.New("probe: sample would not load cleanly")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxBytes, "bytes", probe.DefaultMaxBytes, "number of bytes to sample")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

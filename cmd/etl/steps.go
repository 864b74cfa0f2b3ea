package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transportetl/internal/artifact"
	"transportetl/internal/metrics"
	"transportetl/internal/pipeline"
)

func getExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Check that the raw CSV exists and print its ref",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := step(cmd.Context(), a, "extract", func(ctx context.Context) (pipeline.RawRef, error) {
				return pipeline.Extract(ctx, a.cfg)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ref)
		},
	}
}

func getTransformCmd(a *app) *cobra.Command {
	var raw string

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Clean the raw CSV into the Parquet artifact",
		Long: `Clean the raw CSV chunk by chunk and write the Parquet artifact.

--raw takes a path or the JSON printed by "etl extract"; it defaults to
raw_path from the configuration.

Examples:
  etl transform
  etl transform --raw "$(etl extract)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := pipeline.RawRef{Path: a.cfg.RawPath}
			if err := parseRef(raw, &ref.Path, &ref); err != nil {
				return err
			}
			out, err := step(cmd.Context(), a, "transform", func(ctx context.Context) (pipeline.ArtifactRef, error) {
				return pipeline.Transform(ctx, a.cfg, ref)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&raw, "raw", "", "raw input path or RawRef JSON")
	return cmd
}

func getLoadCmd(a *app) *cobra.Command {
	var art string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Replace the destination table with the artifact",
		Long: `Read the Parquet artifact and fully replace the destination table.

--artifact takes a path or the JSON printed by "etl transform"; it defaults
to artifact_path from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := pipeline.ArtifactRef{Path: a.cfg.ArtifactPath}
			if err := parseRef(art, &ref.Path, &ref); err != nil {
				return err
			}
			if info, err := artifact.Stat(ref.Path); err == nil {
				a.log.Info("loading artifact",
					"path", info.Path,
					"rows", info.Rows,
					"columns", info.Schema.String(),
					"table", a.cfg.Sink.Table,
				)
			}
			res, err := step(cmd.Context(), a, "load", func(ctx context.Context) (pipeline.LoadResult, error) {
				return pipeline.Load(ctx, a.cfg, ref)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&art, "artifact", "", "artifact path or ArtifactRef JSON")
	return cmd
}

func getRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run extract, transform and load with retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := &pipeline.Runner{Config: a.cfg, Logger: a.log}
			run, err := r.Run(cmd.Context())
			if perr := printJSON(cmd.OutOrStdout(), run); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
}

// step runs one pipeline step outside the runner and records its metrics.
func step[T any](ctx context.Context, a *app, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(pipeline.WithLogger(ctx, a.log))
	metrics.RecordStep(a.cfg.Job, name, err, time.Since(start))
	return out, err
}

// parseRef fills ref from JSON when s looks like an object, or sets path
// when s is a plain path. An empty s keeps the defaults.
func parseRef(s string, path *string, ref any) error {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil
	case strings.HasPrefix(s, "{"):
		if err := json.Unmarshal([]byte(s), ref); err != nil {
			return fmt.Errorf("parse ref: %w", err)
		}
		if *path == "" {
			return fmt.Errorf("parse ref: path is empty")
		}
		return nil
	default:
		*path = s
		return nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"transportetl/internal/metrics"
	"transportetl/internal/report"
	"transportetl/internal/storage"
)

func getReportCmd(a *app) *cobra.Command {
	var (
		entities string
		xlsx     string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print activity aggregates from the loaded table",
		Long: `Aggregate the destination table: total activity, activity per year,
the top transport modes with their yearly series, the top entities and the
most used mode per entity. Entity names come from the reference CSV.

Examples:
  etl report
  etl report --xlsx transport.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			start := time.Now()
			defer func() { metrics.RecordStep(a.cfg.Job, "report", err, time.Since(start)) }()

			ctx := cmd.Context()
			rc := a.cfg.Report
			if entities == "" {
				entities = rc.EntitiesPath
			}
			ents, err := report.ReadEntities(entities, rc.EntitiesEncoding)
			if err != nil {
				return err
			}

			repo, err := storage.New(ctx, storage.Config{
				Kind:   a.cfg.Sink.Kind,
				DSN:    a.cfg.Sink.DSN,
				Table:  a.cfg.Sink.Table,
				Job:    a.cfg.Job,
				Logger: a.log,
			})
			if err != nil {
				return err
			}
			defer repo.Close()

			r, err := report.Build(ctx, repo, ents, report.Options{
				TopModes:    rc.TopModes,
				TopEntities: rc.TopEntities,
			})
			if err != nil {
				return err
			}
			if err := report.WriteText(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			if xlsx != "" {
				if err := report.WriteXLSX(xlsx, r); err != nil {
					return err
				}
				a.log.Info("report workbook written", "path", xlsx)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entities, "entities", "", "entity reference CSV (default report.entities_path)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write the aggregates to this XLSX file")
	return cmd
}

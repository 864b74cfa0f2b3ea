package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX workbook.
const (
	SheetSummary     = "Summary"
	SheetByYear      = "ByYear"
	SheetTopModes    = "TopModes"
	SheetTopEntities = "TopEntities"
	SheetEntityModes = "EntityModes"
)

func amount(v float64) string { return humanize.FormatFloat("#,###.", v) }

// WriteText renders r as aligned plain text.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total transport activity (sum VALOR)\t%s\n", amount(r.Total))
	fmt.Fprintf(tw, "Rows\t%s\n", humanize.Comma(r.Rows))
	if r.Unmatched > 0 {
		fmt.Fprintf(tw, "Rows without entity\t%s\n", humanize.Comma(r.Unmatched))
	}

	fmt.Fprintln(tw, "\nActivity by year")
	for _, y := range r.ByYear {
		fmt.Fprintf(tw, "  %d\t%s\n", y.Year, amount(y.Total))
	}

	fmt.Fprintln(tw, "\nTop transport modes")
	for i, m := range r.TopModes {
		fmt.Fprintf(tw, "  %d. %s\t%s\n", i+1, m.Mode, amount(m.Total))
		for _, y := range m.Yearly {
			fmt.Fprintf(tw, "       %d\t%s\n", y.Year, amount(y.Total))
		}
	}

	fmt.Fprintln(tw, "\nTop entities")
	for i, e := range r.TopEntities {
		fmt.Fprintf(tw, "  %d. %s\t%s\n", i+1, e.Entity, amount(e.Total))
	}

	fmt.Fprintln(tw, "\nMost used transport mode per entity")
	for _, e := range r.EntityModes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Entity, e.Mode, amount(e.Total))
	}
	return tw.Flush()
}

// WriteXLSX writes r to path as a workbook with one sheet per aggregate.
func WriteXLSX(path string, r *Report) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	sheets := map[string][][]any{
		SheetSummary: {
			{"metric", "value"},
			{"total_valor", r.Total},
			{"rows", r.Rows},
			{"rows_without_entity", r.Unmatched},
		},
		SheetByYear:      {{ColYear, ColValue}},
		SheetTopModes:    {{"rank", ColMode, ColYear, ColValue}},
		SheetTopEntities: {{"rank", ColEntityName, ColValue}},
		SheetEntityModes: {{ColEntityName, ColMode, ColValue}},
	}
	for _, y := range r.ByYear {
		sheets[SheetByYear] = append(sheets[SheetByYear], []any{y.Year, y.Total})
	}
	for i, m := range r.TopModes {
		for _, y := range m.Yearly {
			sheets[SheetTopModes] = append(sheets[SheetTopModes], []any{i + 1, m.Mode, y.Year, y.Total})
		}
	}
	for i, e := range r.TopEntities {
		sheets[SheetTopEntities] = append(sheets[SheetTopEntities], []any{i + 1, e.Entity, e.Total})
	}
	for _, e := range r.EntityModes {
		sheets[SheetEntityModes] = append(sheets[SheetEntityModes], []any{e.Entity, e.Mode, e.Total})
	}

	for _, name := range []string{SheetSummary, SheetByYear, SheetTopModes, SheetTopEntities, SheetEntityModes} {
		if name != SheetSummary {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("xlsx: new sheet %s: %w", name, err)
			}
		}
		for i, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return fmt.Errorf("xlsx: %w", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("xlsx: write %s row %d: %w", name, i+1, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", path, err)
	}
	return nil
}

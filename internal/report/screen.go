package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/valuescreen/internal/contracts"
	"github.com/wonny/valuescreen/internal/pipeline"
)

// screenColumns is the fixed output schema: identity, valuation context,
// every raw factor in canonical order, then the verdict.
func screenColumns() []string {
	cols := []string{"rank", "ticker", "name", "sector", "price", "market_cap", "enterprise_value"}
	for _, f := range contracts.AllFactors {
		cols = append(cols, string(f))
	}
	return append(cols, "composite_score", "gate_passed", "gate_reason", "flags")
}

func screenRow(row *pipeline.ScreenRow) []string {
	out := []string{
		rankCell(row.Rank),
		row.Ticker,
		row.Name,
		row.Sector,
		numCell(row.Price),
		numCell(row.MarketCap),
		numCell(row.EnterpriseValue),
	}
	for _, f := range contracts.AllFactors {
		out = append(out, numCell(row.Factors[f]))
	}
	composite := ""
	if row.Rank > 0 {
		composite = strconv.FormatFloat(row.Composite, 'f', 6, 64)
	}
	return append(out,
		composite,
		strconv.FormatBool(row.GatePassed),
		row.GateReason,
		flagsCell(row.Flags),
	)
}

// WriteScreenCSV writes the cross-section as CSV. Missing values render as
// empty cells so spreadsheets do not mistake them for zero.
func WriteScreenCSV(w io.Writer, res *pipeline.ScreenResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(screenColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range res.Rows {
		if err := cw.Write(screenRow(row)); err != nil {
			return fmt.Errorf("write row %s: %w", row.Ticker, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScreenMarkdown writes the cross-section as a Markdown table with a
// short header block, for pasting into run notes.
func WriteScreenMarkdown(w io.Writer, res *pipeline.ScreenResult) error {
	fmt.Fprintf(w, "# Screen %s\n\n", res.AsOf.Format("2006-01-02"))
	fmt.Fprintf(w, "%d names, %d skipped, %d gated out\n\n",
		len(res.Rows), res.Skipped, res.Excluded)

	cols := screenColumns()
	fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(sep, " | "))

	for _, row := range res.Rows {
		cells := screenRow(row)
		for i, c := range cells {
			if c == "" {
				cells[i] = "-"
			}
		}
		if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | ")); err != nil {
			return err
		}
	}
	return nil
}

func numCell(v float64) string {
	if contracts.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func rankCell(rank int) string {
	if rank <= 0 {
		return ""
	}
	return strconv.Itoa(rank)
}

func flagsCell(flags []contracts.RiskFlag) string {
	if len(flags) == 0 {
		return ""
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

// Package report renders detection results as tab-separated tables and
// BED tracks.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pangraphs/invfind/internal/detect"
)

// WriteTSV renders the merged call table: a '#'-prefixed header row so
// downstream tooling skips it, then one line per partition segment with a
// 0/1 column per query.
func WriteTSV(w io.Writer, rs *detect.ResultSet) error {
	header := append([]string{"#ref", "start", "end"}, rs.Queries...)
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, row := range rs.Rows {
		cells := make([]string, 0, len(row.Calls)+3)
		cells = append(cells, rs.Reference,
			strconv.FormatInt(row.Start, 10),
			strconv.FormatInt(row.End, 10))
		for _, c := range row.Calls {
			cells = append(cells, strconv.Itoa(c))
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return nil
}

// WriteBED renders the rows as BED5 records. BED coordinates are 0-based
// half-open, so start shifts down by one; the score column counts how
// many queries are flagged on the row.
func WriteBED(w io.Writer, rs *detect.ResultSet) error {
	for i, row := range rs.Rows {
		score := 0
		for _, c := range row.Calls {
			score += c
		}
		_, err := fmt.Fprintf(w, "%s\t%d\t%d\tinv%d\t%d\n",
			rs.Reference, row.Start-1, row.End, i+1, score)
		if err != nil {
			return fmt.Errorf("writing BED record: %w", err)
		}
	}
	return nil
}

// WriteDiagnostics renders recovered warnings one per line, prefixed so
// they are greppable when redirected alongside the table.
func WriteDiagnostics(w io.Writer, ds []detect.Diagnostic) error {
	for _, d := range ds {
		if _, err := fmt.Fprintf(w, "warning: %s\n", d); err != nil {
			return fmt.Errorf("writing diagnostic: %w", err)
		}
	}
	return nil
}

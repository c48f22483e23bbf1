package statementhttp

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aegis-hfm/aegis-hfm/internal/statement"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// writeStatementCSV streams a generated statement as CSV rows: one row per
// line with both period values and the variance columns.
func writeStatementCSV(w io.Writer, resp statement.FinancialStatementResponse) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRow([]string{
		"line_code", "description", "current_period", "previous_period",
		"variance_absolute", "variance_pct", "state",
	}); err != nil {
		return err
	}
	for _, line := range resp.Statement.Lines {
		row := []string{
			line.Metadata.LineCode,
			line.Description,
			formatCSVAmount(line, line.CurrentPeriodValue),
			formatCSVAmount(line, line.PreviousPeriodValue),
			"", "",
			string(line.Metadata.State),
		}
		if line.Variance != nil {
			row[4] = strconv.FormatFloat(line.Variance.Absolute, 'f', 2, 64)
			if line.Variance.ZeroBaseline {
				row[5] = "n/a"
			} else {
				row[5] = strconv.FormatFloat(line.Variance.Percentage, 'f', 2, 64)
			}
		}
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

func formatCSVAmount(line statement.StatementLine, v float64) string {
	if line.Formatting.Kind == statement.KindSection {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

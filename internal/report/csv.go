package report

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// formulaLeaders are first characters that make a spreadsheet evaluate a
// cell instead of displaying it.
const formulaLeaders = "=+-@|%\t\r\n"

// EscapeCSVCell neutralizes formula injection by prefixing a single quote.
func EscapeCSVCell(value string) string {
	if value != "" && strings.IndexByte(formulaLeaders, value[0]) >= 0 {
		return "'" + value
	}
	return value
}

// EscapeCSVRow escapes all cells in a row
func EscapeCSVRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = EscapeCSVCell(cell)
	}
	return escaped
}

// Sheet writes escaped CSV rows under a fixed header.
type Sheet struct {
	w       *csv.Writer
	columns int
	rows    int
}

func NewSheet(w io.Writer, header []string) (*Sheet, error) {
	s := &Sheet{w: csv.NewWriter(w), columns: len(header)}
	if err := s.w.Write(EscapeCSVRow(header)); err != nil {
		return nil, errors.Wrap(err, "write csv header")
	}
	return s, nil
}

// Append writes one row. It must have as many cells as the header.
func (s *Sheet) Append(row []string) error {
	if len(row) != s.columns {
		return errors.Newf("csv row has %d cells, header has %d", len(row), s.columns)
	}
	if err := s.w.Write(EscapeCSVRow(row)); err != nil {
		return errors.Wrap(err, "write csv row")
	}
	s.rows++
	return nil
}

// Rows is the number of data rows appended so far.
func (s *Sheet) Rows() int { return s.rows }

func (s *Sheet) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

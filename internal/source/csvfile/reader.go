package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// reader streams data rows from a header-mapped CSV file. It is single-pass:
// once a row has been consumed it cannot be read again.
type reader struct {
	file   *os.File
	csv    *csv.Reader
	cols   map[string]int
	row    int
	logger *slog.Logger
}

func open(path string, logger *slog.Logger, requiredCol string) (*reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cr := csv.NewReader(file)
	header, err := cr.Read()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols[requiredCol]; !ok {
		_ = file.Close()
		return nil, fmt.Errorf("%s: missing required column %q", path, requiredCol)
	}

	return &reader{file: file, csv: cr, cols: cols, logger: logger}, nil
}

// next returns the fields of the next data row, or io.EOF when the stream is
// exhausted. Rows that fail to parse are logged and skipped; only an
// unrecoverable read error ends the stream early.
func (r *reader) next() ([]string, error) {
	for {
		fields, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		r.row++
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				r.logger.Warn("skipping malformed row", "row", r.row, "error", err)
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", r.row, err)
		}
		return fields, nil
	}
}

func (r *reader) field(fields []string, name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func (r *reader) close() error {
	return r.file.Close()
}

// Package dataset reads labelled employee datasets from CSV.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/attrition/internal/domain/model"
)

// Row is one data line. Err is set when the line cannot be turned into a
// valid record and label; such rows are handed to the scorer as failures.
type Row struct {
	Line   int
	Record model.EmployeeRecord
	Actual model.Outcome
	Err    error
}

// Dataset holds the parsed rows in file order.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Invalid counts rows that failed to parse.
func (d *Dataset) Invalid() int {
	n := 0
	for _, r := range d.Rows {
		if r.Err != nil {
			n++
		}
	}
	return n
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a CSV whose header names the fifteen features and the
// Attrition column. Extra columns are ignored. Header problems fail the
// whole parse; problems inside a data row are recorded on that row.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(&bomSkipper{r: r})
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		columns[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	labelIdx, ok := index[model.LabelColumn]
	if !ok {
		return nil, &MissingLabelColumnError{Column: model.LabelColumn}
	}
	var missing []string
	for _, f := range model.Features {
		if _, ok := index[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFeatureColumnError{Columns: missing}
	}

	ds := &Dataset{Columns: columns}
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				ds.Rows = append(ds.Rows, Row{Line: perr.Line, Err: &RowError{Line: perr.Line, Err: perr.Err}})
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlank(fields) {
			continue
		}
		line, _ := reader.FieldPos(0)
		ds.Rows = append(ds.Rows, parseRow(line, fields, index, labelIdx))
	}
	return ds, nil
}

// ParseFile opens path and parses it.
func ParseFile(path string) (*Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

func parseRow(line int, fields []string, index map[string]int, labelIdx int) Row {
	row := Row{Line: line}
	fail := func(err error) Row {
		row.Err = &RowError{Line: line, Err: err}
		return row
	}

	if labelIdx >= len(fields) {
		return fail(fmt.Errorf("missing %s value", model.LabelColumn))
	}
	actual, err := model.ParseOutcome(fields[labelIdx])
	if err != nil {
		return fail(err)
	}
	row.Actual = actual

	for _, f := range model.Features {
		i := index[f]
		if i >= len(fields) {
			return fail(fmt.Errorf("missing %s value", f))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", f, err))
		}
		row.Record.Set(f, v)
	}
	if err := row.Record.Validate(); err != nil {
		return fail(err)
	}
	return row
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// bomSkipper drops a leading UTF-8 byte order mark, which spreadsheet
// exports commonly prepend to the header.
type bomSkipper struct {
	r       io.Reader
	checked bool
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if b.checked {
		return b.r.Read(p)
	}
	b.checked = true
	head := make([]byte, len(utf8BOM))
	n, err := io.ReadFull(b.r, head)
	head = head[:n]
	if bytes.Equal(head, utf8BOM) {
		head = nil
	}
	b.r = io.MultiReader(bytes.NewReader(head), b.r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return b.r.Read(p)
}

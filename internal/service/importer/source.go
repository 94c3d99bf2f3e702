package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/repository/sheets"
)

const (
	columnSKU      = "sku"
	columnQuantity = "quantity"
)

// Row is one raw data line of an import feed. Line is one-based and counts the header.
type Row struct {
	Line     int
	SKU      string
	Quantity string
	// Err is set when the line itself could not be decoded.
	Err error
}

// RowSource yields rows until io.EOF.
type RowSource interface {
	Next() (Row, error)
}

// header locates the SKU and Quantity columns, ignoring case and padding.
type header struct {
	sku      int
	quantity int
}

func parseHeader(cells []string) (header, error) {
	h := header{sku: -1, quantity: -1}
	for i, c := range cells {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))) {
		case columnSKU:
			if h.sku < 0 {
				h.sku = i
			}
		case columnQuantity:
			if h.quantity < 0 {
				h.quantity = i
			}
		}
	}
	if h.sku < 0 || h.quantity < 0 {
		return h, apperr.Validation("import feed must have SKU and Quantity columns")
	}
	return h, nil
}

func (h header) row(line int, cells []string) Row {
	r := Row{Line: line}
	if h.sku < len(cells) {
		r.SKU = strings.TrimSpace(cells[h.sku])
	}
	if h.quantity < len(cells) {
		r.Quantity = strings.TrimSpace(cells[h.quantity])
	}
	return r
}

// CSVSource streams rows from a CSV document.
type CSVSource struct {
	reader *csv.Reader
	header header
}

// NewCSVSource reads the header line and returns a source positioned on the first data row.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cells, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Validation("import feed is empty")
	}
	if err != nil {
		return nil, apperr.Validation("import feed header is unreadable: %v", err)
	}
	h, err := parseHeader(cells)
	if err != nil {
		return nil, err
	}
	return &CSVSource{reader: reader, header: h}, nil
}

// Next returns the next data row. Malformed lines come back as a Row with Err set.
func (s *CSVSource) Next() (Row, error) {
	for {
		cells, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}

		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Row{Line: perr.StartLine, Err: perr.Err}, nil
		}
		if err != nil {
			return Row{}, fmt.Errorf("read csv: %w", err)
		}
		if blank(cells) {
			continue
		}
		line, _ := s.reader.FieldPos(0)
		return s.header.row(line, cells), nil
	}
}

// SheetSource yields rows of a spreadsheet range.
type SheetSource struct {
	values [][]interface{}
	header header
	next   int
}

// NewSheetSource loads sheetRange through reader. The first row of the range is the header.
func NewSheetSource(ctx context.Context, reader sheets.Reader, sheetRange string) (*SheetSource, error) {
	if strings.TrimSpace(sheetRange) == "" {
		return nil, apperr.Validation("range is required")
	}

	values, err := reader.ReadRange(ctx, sheetRange)
	if err != nil {
		return nil, apperr.Storage("read sheet range", err)
	}
	if len(values) == 0 {
		return nil, apperr.Validation("sheet range %s is empty", sheetRange)
	}

	h, err := parseHeader(cellStrings(values[0]))
	if err != nil {
		return nil, err
	}
	return &SheetSource{values: values, header: h, next: 1}, nil
}

// Next returns the next non-empty row of the range.
func (s *SheetSource) Next() (Row, error) {
	for s.next < len(s.values) {
		i := s.next
		s.next++
		cells := cellStrings(s.values[i])
		if blank(cells) {
			continue
		}
		return s.header.row(i+1, cells), nil
	}
	return Row{}, io.EOF
}

// cellStrings renders unformatted sheet values. Whole numbers lose their decimal point.
func cellStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch t := v.(type) {
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SampleCSV writes the import template.
func SampleCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"SKU", "Quantity"},
		{"SKU-0001", "25"},
		{"SKU-0002", "-4"},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write sample csv: %w", err)
	}
	return nil
}

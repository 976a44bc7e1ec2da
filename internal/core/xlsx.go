package core

// xlsx.go adapts an Excel workbook to the RowSource interface so .xlsx price
// lists flow through the same pipeline as CSV.

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxMagic is the local file header signature every .xlsx (zip) starts with.
var xlsxMagic = []byte("PK\x03\x04")

// IsXLSX reports whether the leading bytes look like a zip container.
func IsXLSX(head []byte) bool {
	return bytes.HasPrefix(head, xlsxMagic)
}

// xlsxRows streams rows of a single sheet.
type xlsxRows struct {
	file *excelize.File
	rows *excelize.Rows
}

// openXLSX opens the first sheet of the workbook, preferring one named
// "Products" or "Товары" when present. The zip format needs random access, so
// the whole document is buffered by excelize.
func openXLSX(r io.Reader) (*xlsxRows, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrMalformedInput, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") || strings.EqualFold(name, "Товары") {
			sheet = name
			break
		}
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformedInput, sheet, err)
	}
	return &xlsxRows{file: f, rows: rows}, nil
}

// Read returns the next row, or io.EOF after the last one.
func (x *xlsxRows) Read() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return nil, io.EOF
	}
	cols, err := x.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return cols, nil
}

func (x *xlsxRows) Close() error {
	rerr := x.rows.Close()
	ferr := x.file.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}

package core

// ingest.go converts uploaded price lists into canonical Products.
//
// Processing is two-phase per invocation:
//
//  1. The first non-empty row is the header. Each header is classified once by
//     the ColumnMapper; unmatched columns are ignored for the rest of the file.
//  2. Every following row becomes exactly one Product. Missing cells take the
//     field default, unparsable numbers fall back to 0 and mark the row as
//     degraded. IDs are fresh per row and products are always invisible.
//
// Only I/O failures and structurally broken input (unterminated quotes, a
// corrupt workbook) abort the whole ingestion. Raw rows never leave this file.

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ctxCheckInterval is how many rows ReadAll processes between context checks.
const ctxCheckInterval = 256

// Format identifies the container of an upload.
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// RowSource yields raw rows. *csv.Reader satisfies it.
type RowSource interface {
	Read() ([]string, error)
}

// IngestStats describes what a ProductReader has consumed so far.
type IngestStats struct {
	Format   Format           `json:"format"`
	Columns  []CanonicalField `json:"columns"`
	Rows     int              `json:"rows"`
	Degraded int              `json:"degraded"`
	Skipped  int              `json:"skipped"`
}

// IngestOption customizes Ingest.
type IngestOption func(*ingestConfig)

type ingestConfig struct {
	mapper    *ColumnMapper
	newID     func() string
	logger    *slog.Logger
	format    Format
	delimiter rune
}

// WithColumnMapper overrides the header classifier.
func WithColumnMapper(m *ColumnMapper) IngestOption {
	return func(c *ingestConfig) { c.mapper = m }
}

// WithIDGenerator overrides product ID generation (uuid v4 by default).
func WithIDGenerator(fn func() string) IngestOption {
	return func(c *ingestConfig) { c.newID = fn }
}

// WithLogger sets the logger used for per-row degradation warnings.
func WithLogger(l *slog.Logger) IngestOption {
	return func(c *ingestConfig) { c.logger = l }
}

// WithFormat skips content sniffing.
func WithFormat(f Format) IngestOption {
	return func(c *ingestConfig) { c.format = f }
}

// WithDelimiter sets the CSV field delimiter (',' by default).
func WithDelimiter(r rune) IngestOption {
	return func(c *ingestConfig) { c.delimiter = r }
}

// ProductReader is a lazy, one-shot sequence of Products decoded from an upload.
// It is not safe for concurrent use.
type ProductReader struct {
	cfg ingestConfig
	src io.Reader

	rows    RowSource
	closer  io.Closer
	mapping map[CanonicalField]int

	started bool
	done    bool
	err     error
	row     int
	stats   IngestStats
}

// Ingest returns a reader over the products in r. Nothing is read until the
// first call to Next or ReadAll.
func Ingest(r io.Reader, opts ...IngestOption) *ProductReader {
	cfg := ingestConfig{
		newID:     uuid.NewString,
		delimiter: ',',
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mapper == nil {
		cfg.mapper = NewColumnMapper()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &ProductReader{cfg: cfg, src: r}
}

// Next returns the next product. It returns io.EOF after the last row; any
// other error is terminal and is returned again by subsequent calls.
func (pr *ProductReader) Next() (Product, error) {
	if pr.err != nil {
		return Product{}, pr.err
	}
	if pr.done {
		return Product{}, io.EOF
	}
	if !pr.started {
		pr.started = true
		if err := pr.start(); err != nil {
			return Product{}, pr.fail(err)
		}
		if pr.done {
			return Product{}, io.EOF
		}
	}

	for {
		rec, err := pr.readRow()
		if err == io.EOF {
			pr.finish()
			return Product{}, io.EOF
		}
		if err != nil {
			return Product{}, pr.fail(err)
		}
		if isBlankRow(rec) {
			pr.stats.Skipped++
			continue
		}
		p, degraded := pr.build(rec)
		pr.stats.Rows++
		if degraded {
			pr.stats.Degraded++
		}
		return p, nil
	}
}

// ReadAll drains the reader. Zero data rows yield an empty, non-nil slice.
func (pr *ProductReader) ReadAll(ctx context.Context) ([]Product, error) {
	defer pr.Close()

	products := make([]Product, 0, 64)
	for i := 0; ; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, pr.fail(err)
			}
		}
		p, err := pr.Next()
		if err == io.EOF {
			return products, nil
		}
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
}

// Stats returns counters for the rows consumed so far.
func (pr *ProductReader) Stats() IngestStats {
	s := pr.stats
	s.Columns = append([]CanonicalField(nil), pr.stats.Columns...)
	return s
}

// Close releases workbook resources. It is safe to call more than once.
func (pr *ProductReader) Close() error {
	pr.done = true
	if pr.closer == nil {
		return nil
	}
	c := pr.closer
	pr.closer = nil
	return c.Close()
}

func (pr *ProductReader) start() error {
	format := pr.cfg.format
	src := pr.src

	if format == FormatAuto {
		br := bufio.NewReader(src)
		head, err := br.Peek(len(xlsxMagic))
		if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
			return fmt.Errorf("read upload: %w", err)
		}
		format = FormatCSV
		if IsXLSX(head) {
			format = FormatXLSX
		}
		src = br
	}
	pr.stats.Format = format

	switch format {
	case FormatXLSX:
		x, err := openXLSX(src)
		if err != nil {
			return err
		}
		pr.rows, pr.closer = x, x
	case FormatCSV:
		cr := csv.NewReader(WrapForStreaming(src))
		cr.Comma = pr.cfg.delimiter
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = false
		pr.rows = cr
	default:
		return invalidf("unsupported format %q", format)
	}

	for {
		header, err := pr.readRow()
		if err == io.EOF {
			pr.finish()
			return nil
		}
		if err != nil {
			return err
		}
		if isBlankRow(header) {
			continue
		}
		pr.mapping = pr.cfg.mapper.MapHeaders(header)
		break
	}

	for _, f := range CanonicalFields {
		if _, ok := pr.mapping[f]; ok {
			pr.stats.Columns = append(pr.stats.Columns, f)
		}
	}
	if len(pr.stats.Columns) == 0 {
		pr.cfg.logger.Warn("no recognizable columns in header, all fields use defaults")
	}
	return nil
}

func (pr *ProductReader) readRow() ([]string, error) {
	rec, err := pr.rows.Read()
	if err == nil {
		pr.row++
		return rec, nil
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, pe.Line, pe.Err)
	}
	if errors.Is(err, ErrMalformedInput) {
		return nil, err
	}
	return nil, fmt.Errorf("read upload: %w", err)
}

// build converts one raw row. The bool reports whether any value fell back
// to its default because it could not be parsed.
func (pr *ProductReader) build(rec []string) (Product, bool) {
	cell := func(f CanonicalField) string {
		idx, ok := pr.mapping[f]
		if !ok || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}

	p := Product{
		ID:          pr.cfg.newID(),
		Name:        orDefault(strings.TrimSpace(cell(FieldName)), DefaultName),
		Description: strings.TrimSpace(cell(FieldDescription)),
		ImageURL:    strings.TrimSpace(cell(FieldImageURL)),
		Category:    orDefault(strings.TrimSpace(cell(FieldCategory)), DefaultCategory),
		Tags:        SplitTags(cell(FieldTags)),
		IsVisible:   false,
	}

	degraded := false
	var ok bool
	if p.Price, ok = ParsePrice(cell(FieldPrice)); !ok {
		degraded = true
		pr.degrade(FieldPrice, cell(FieldPrice))
	}
	if p.Stock, ok = ParseStock(cell(FieldStock)); !ok {
		degraded = true
		pr.degrade(FieldStock, cell(FieldStock))
	}
	return p, degraded
}

func (pr *ProductReader) degrade(f CanonicalField, raw string) {
	pr.cfg.logger.Warn("value degraded to default",
		"row", pr.row,
		"field", string(f),
		"value", raw,
		"error", ErrValidationDegraded,
	)
}

func (pr *ProductReader) fail(err error) error {
	pr.err = err
	pr.Close()
	return err
}

func (pr *ProductReader) finish() {
	pr.Close()
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

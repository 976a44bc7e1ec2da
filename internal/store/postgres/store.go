// Package postgres implements the catalog stores on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalog/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBatchSize is the number of rows per upsert batch.
const DefaultBatchSize = 500

// PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const productColumns = `id, name, price, description, image_url, category, stock, tags, is_visible, created_at, updated_at`

var copyColumns = []string{"id", "name", "price", "description", "image_url", "category", "stock", "tags", "is_visible"}

const upsertProductSQL = `
INSERT INTO products (id, name, price, description, image_url, category, stock, tags, is_visible)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name        = EXCLUDED.name,
    price       = EXCLUDED.price,
    description = EXCLUDED.description,
    image_url   = EXCLUDED.image_url,
    category    = EXCLUDED.category,
    stock       = EXCLUDED.stock,
    tags        = EXCLUDED.tags,
    is_visible  = EXCLUDED.is_visible,
    updated_at  = now()`

// PoolOptions configures the connection pool.
type PoolOptions struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open parses opts, connects and pings.
func Open(ctx context.Context, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store implements core.ProductStore, core.AdminStore and core.Pinger.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

// New wraps an open pool. batchSize bounds each upsert batch.
func New(pool *pgxpool.Pool, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{pool: pool, batchSize: batchSize}
}

// Migrate creates the catalog tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListProducts returns products in creation order.
func (s *Store) ListProducts(ctx context.Context, filter core.ProductFilter) ([]core.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if filter.VisibleOnly {
		query += ` WHERE is_visible`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product or core.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (core.Product, error) {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return core.Product{}, fmt.Errorf("product %q: %w", id, core.ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, pgID)
	if err != nil {
		return core.Product{}, fmt.Errorf("get product: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Product{}, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// InsertProducts bulk-loads new products with COPY. The load is atomic.
func (s *Store) InsertProducts(ctx context.Context, products []core.Product) error {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		copyColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			return productArgs(products[i])
		}),
	)
	if err != nil {
		return fmt.Errorf("copy products: %w", err)
	}
	if int(n) != len(products) {
		return fmt.Errorf("copy products: wrote %d of %d rows", n, len(products))
	}
	return nil
}

// UpdateProduct overwrites every mutable column of an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE products SET
    name = $2, price = $3, description = $4, image_url = $5,
    category = $6, stock = $7, tags = $8, is_visible = $9, updated_at = now()
WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", p.ID, core.ErrNotFound)
	}
	return nil
}

// SetVisibility flips the published flag.
func (s *Store) SetVisibility(ctx context.Context, id string, visible bool) error {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return fmt.Errorf("product %q: %w", id, core.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET is_visible = $2, updated_at = now() WHERE id = $1`,
		pgID, visible)
	if err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// UpsertProducts writes products in batches of batchSize. Each batch runs in
// its own implicit transaction, so a failure leaves earlier batches applied.
func (s *Store) UpsertProducts(ctx context.Context, products []core.Product) error {
	for start := 0; start < len(products); start += s.batchSize {
		end := min(start+s.batchSize, len(products))
		if err := s.upsertChunk(ctx, products[start:end]); err != nil {
			return fmt.Errorf("upsert products %d-%d of %d: %w", start, end, len(products), err)
		}
	}
	return nil
}

func (s *Store) upsertChunk(ctx context.Context, chunk []core.Product) error {
	batch := &pgx.Batch{}
	for _, p := range chunk {
		args, err := productArgs(p)
		if err != nil {
			return err
		}
		batch.Queue(upsertProductSQL, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range chunk {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// ListAdminIDs returns every persisted admin id.
func (s *Store) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return ids, nil
}

// InsertAdmin adds an admin id. An existing id is reported as invalid input.
func (s *Store) InsertAdmin(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO admins (user_id) VALUES ($1)`, userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s is already an admin", core.ErrInvalidInput, userID)
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func productArgs(p core.Product) ([]any, error) {
	if err := p.CheckRange(); err != nil {
		return nil, err
	}
	id := ToPgUUID(p.ID)
	if !id.Valid {
		return nil, fmt.Errorf("%w: product id %q is not a UUID", core.ErrInvalidInput, p.ID)
	}
	return []any{
		id,
		p.Name,
		ToPgNumeric(p.Price),
		p.Description,
		p.ImageURL,
		p.Category,
		int32(p.Stock),
		nonNilTags(p.Tags),
		p.IsVisible,
	}, nil
}

func scanProduct(row pgx.CollectableRow) (core.Product, error) {
	var (
		p     core.Product
		id    pgtype.UUID
		price pgtype.Numeric
		stock int32
	)
	err := row.Scan(&id, &p.Name, &price, &p.Description, &p.ImageURL, &p.Category,
		&stock, &p.Tags, &p.IsVisible, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return core.Product{}, err
	}

	p.ID = PgUUIDToString(id)
	p.Stock = int(stock)
	p.Tags = nonNilTags(p.Tags)
	if p.Price, err = FromPgNumeric(price); err != nil {
		return core.Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	return p, nil
}

// Package core provides the business logic for catalog ingestion and caching.
//
// This package contains all domain logic independent of any transport. The
// HTTP server, the admin CLI and tests all go through [Service].
//
// # Ingestion
//
// [Ingest] turns a CSV or XLSX upload into a lazy sequence of [Product]
// values. Headers are classified once by the [ColumnMapper] using
// substring matching against English and Russian synonyms:
//
//	Название,Цена,Остаток      -> name, price, stock
//	Product Name (RU),Qty      -> name, stock
//
// Cells that cannot be parsed fall back to the field default and the row is
// counted as degraded. Only broken input (unterminated quotes, a corrupt
// workbook) or I/O errors fail the whole ingestion.
//
// # Authorization
//
// [AuthorizationResolver] walks an ordered list of strategies: the static
// allow-list, then the admins table read through [Retry]. It fails closed.
//
// # Caching
//
// [ProductCache] holds the visible subset for a TTL. Loads are single-flight
// per generation and every successful write made through [CatalogMutator]
// invalidates it.
//
// # Error Handling
//
// Errors wrap the sentinels in errors.go. [MapError] converts them to
// user-friendly messages with a support code:
//
//   - CAT001: not found
//   - CAT002: degraded value
//   - CAT003: store or fetch unavailable
//   - CAT004: malformed file
//   - CAT005: permission denied
//   - CAT006: invalid request
//   - CAT007: too many imports
//   - CAT008: timeout
package core

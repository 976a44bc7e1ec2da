package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/catalog/internal/core"
)

// maxJSONBody bounds non-import request bodies.
const maxJSONBody = 1 << 20

// multipartMemory is held in memory before multipart parts spill to disk.
const multipartMemory = 32 << 20

type productsResponse struct {
	Products []core.Product `json:"products"`
	Count    int            `json:"count"`
}

// handleVisibleProducts serves the published catalog from the cache.
func (s *Server) handleVisibleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.VisibleProducts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productsResponse{Products: products, Count: len(products)})
}

// handleHealth reports store connectivity with cache and import counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	h, err := s.service.Health(r.Context())
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// handleAdminStatus tells a client whether to show admin controls.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.AdminStatus(r.Context(), callerID(r)))
}

// handleListProducts lists every product, hidden ones included.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context(), callerID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productsResponse{Products: products, Count: len(products)})
}

type importRequest struct {
	DocumentRef string `json:"documentRef"`
	Format      string `json:"format"`
	Delimiter   string `json:"delimiter"`
}

// handleImport accepts a raw CSV/XLSX body, a multipart "file" field, or a
// JSON document reference.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var result core.ImportResult
	switch mediaType {
	case "application/json":
		var req importRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		opts, err := ingestOptions(req.Format, req.Delimiter, req.DocumentRef)
		if err != nil {
			respondError(w, r, err)
			return
		}
		result, err = s.service.ImportDocument(r.Context(), callerID(r), req.DocumentRef, opts...)
		if err != nil {
			respondError(w, r, err)
			return
		}

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			respondError(w, r, fmt.Errorf("%w: invalid multipart form: %w", core.ErrInvalidInput, err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, fmt.Errorf("%w: no file provided", core.ErrInvalidInput))
			return
		}
		defer file.Close()

		opts, err := ingestOptions(r.FormValue("format"), r.FormValue("delimiter"), header.Filename)
		if err != nil {
			respondError(w, r, err)
			return
		}
		result, err = s.service.ImportReader(r.Context(), callerID(r), header.Filename, file, opts...)
		if err != nil {
			respondError(w, r, err)
			return
		}

	default:
		query := r.URL.Query()
		source := query.Get("filename")
		if source == "" {
			source = "upload"
		}
		opts, err := ingestOptions(query.Get("format"), query.Get("delimiter"), source)
		if err != nil {
			respondError(w, r, err)
			return
		}
		result, err = s.service.ImportReader(r.Context(), callerID(r), source, r.Body, opts...)
		if err != nil {
			respondError(w, r, err)
			return
		}
	}

	status := http.StatusCreated
	if result.Empty {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// handleUpdateProduct applies a JSON merge-patch to one product.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch core.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	product, err := s.service.UpdateProduct(r.Context(), callerID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// handleSetVisibility publishes or hides one product.
func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Visible == nil {
		respondError(w, r, fmt.Errorf("%w: visible is required", core.ErrInvalidInput))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.service.SetVisibility(r.Context(), callerID(r), id, *req.Visible); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "visible": *req.Visible})
}

type bulkPriceRequest struct {
	Mode  string           `json:"mode"`
	Value *decimal.Decimal `json:"value"`
}

// handleBulkPrice adjusts every product's price by a percentage or fixed amount.
func (s *Server) handleBulkPrice(w http.ResponseWriter, r *http.Request) {
	var req bulkPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	mode, ok := core.ParsePriceMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if !ok {
		respondError(w, r, fmt.Errorf("%w: mode must be percent or fixed, got %q", core.ErrInvalidInput, req.Mode))
		return
	}
	if req.Value == nil {
		respondError(w, r, fmt.Errorf("%w: value is required", core.ErrInvalidInput))
		return
	}

	n, err := s.service.BulkAdjustPrice(r.Context(), callerID(r), mode, *req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n, "mode": mode, "value": *req.Value})
}

type addAdminRequest struct {
	UserID string `json:"user_id"`
}

// handleAddAdmin grants admin capability to another identity.
func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req addAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.AddAdmin(r.Context(), callerID(r), req.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": strings.TrimSpace(req.UserID)})
}

// decodeJSON strictly decodes a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", core.ErrInvalidInput, err)
	}
	return nil
}

// ingestOptions builds ingestion options from request parameters. An explicit
// format wins; otherwise a .xlsx or .csv name selects it.
func ingestOptions(format, delimiter, name string) ([]core.IngestOption, error) {
	var opts []core.IngestOption

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx":
			opts = append(opts, core.WithFormat(core.FormatXLSX))
		case ".csv":
			opts = append(opts, core.WithFormat(core.FormatCSV))
		}
	case "csv":
		opts = append(opts, core.WithFormat(core.FormatCSV))
	case "xlsx":
		opts = append(opts, core.WithFormat(core.FormatXLSX))
	default:
		return nil, fmt.Errorf("%w: format must be csv or xlsx, got %q", core.ErrInvalidInput, format)
	}

	switch {
	case delimiter == "":
	case strings.EqualFold(delimiter, "tab") || delimiter == `\t`:
		opts = append(opts, core.WithDelimiter('\t'))
	case utf8.RuneCountInString(delimiter) == 1:
		d, _ := utf8.DecodeRuneInString(delimiter)
		opts = append(opts, core.WithDelimiter(d))
	default:
		return nil, fmt.Errorf("%w: delimiter must be a single character, got %q", core.ErrInvalidInput, delimiter)
	}

	return opts, nil
}

package core

// column_mapper.go classifies free-form spreadsheet headers into canonical
// product fields.
//
// Matching is by substring containment over normalized text, so headers such as
// "Product Name (RU)" or "Цена, руб." are recognized. The cost is false
// positives: any header containing a synonym matches, e.g. "itemcode" maps to
// name through "item". This is a known limitation and intentionally kept.

import (
	"strings"
	"unicode"
)

// CanonicalField is one of the fixed product attributes headers map onto.
type CanonicalField string

const (
	FieldName        CanonicalField = "name"
	FieldPrice       CanonicalField = "price"
	FieldDescription CanonicalField = "description"
	FieldImageURL    CanonicalField = "image_url"
	FieldCategory    CanonicalField = "category"
	FieldStock       CanonicalField = "stock"
	FieldTags        CanonicalField = "tags"
)

// CanonicalFields lists every field in classification order.
var CanonicalFields = []CanonicalField{
	FieldName,
	FieldPrice,
	FieldDescription,
	FieldImageURL,
	FieldCategory,
	FieldStock,
	FieldTags,
}

// defaultSynonyms holds the recognized header tokens per field, including the
// Russian variants seen in supplier price lists.
var defaultSynonyms = map[CanonicalField][]string{
	FieldName:        {"name", "title", "product_name", "item", "название", "имя", "продукт", "товар"},
	FieldPrice:       {"price", "cost", "value", "цена", "стоимость"},
	FieldDescription: {"description", "desc", "info", "details", "описание", "информация", "детали"},
	FieldImageURL:    {"image", "img", "photo", "picture", "url", "image_url", "изображение", "фото", "ссылка"},
	FieldCategory:    {"category", "type", "group", "категория", "тип", "группа"},
	FieldStock:       {"stock", "quantity", "qty", "available", "остаток", "количество", "в_наличии"},
	FieldTags:        {"tags", "labels", "keywords", "теги", "метки", "ключевые_слова"},
}

type fieldSynonyms struct {
	field  CanonicalField
	tokens []string
}

// ColumnMapper is a stateless header classifier. The zero value is not usable;
// construct with NewColumnMapper.
type ColumnMapper struct {
	rules []fieldSynonyms
}

// NewColumnMapper builds a mapper over the default synonym table.
func NewColumnMapper() *ColumnMapper {
	return NewColumnMapperWith(defaultSynonyms)
}

// NewColumnMapperWith builds a mapper over a custom synonym table. Fields are
// always tried in CanonicalFields order; fields missing from the table never match.
func NewColumnMapperWith(synonyms map[CanonicalField][]string) *ColumnMapper {
	m := &ColumnMapper{}
	for _, f := range CanonicalFields {
		var tokens []string
		for _, s := range synonyms[f] {
			if n := NormalizeHeader(s); n != "" {
				tokens = append(tokens, n)
			}
		}
		if len(tokens) > 0 {
			m.rules = append(m.rules, fieldSynonyms{field: f, tokens: tokens})
		}
	}
	return m
}

// Classify returns the canonical field for header, or false when nothing matches.
// The first field in declaration order wins regardless of synonym order.
func (m *ColumnMapper) Classify(header string) (CanonicalField, bool) {
	h := NormalizeHeader(header)
	if h == "" {
		return "", false
	}
	for _, rule := range m.rules {
		for _, tok := range rule.tokens {
			if strings.Contains(h, tok) {
				return rule.field, true
			}
		}
	}
	return "", false
}

// MapHeaders builds the field -> column index mapping for a header row.
// When several headers classify to the same field, the rightmost one wins.
func (m *ColumnMapper) MapHeaders(headers []string) map[CanonicalField]int {
	mapping := make(map[CanonicalField]int, len(CanonicalFields))
	for i, h := range headers {
		if f, ok := m.Classify(h); ok {
			mapping[f] = i
		}
	}
	return mapping
}

// NormalizeHeader lower-cases s and drops underscores, hyphens and whitespace.
func NormalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

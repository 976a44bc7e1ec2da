package core

// streaming.go normalizes the byte stream of a delimited upload before it
// reaches the CSV decoder.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// WrapForStreaming returns a reader that strips a leading byte order mark and
// replaces invalid UTF-8 with U+FFFD. A UTF-16 BOM switches decoding to
// UTF-16, which is what Excel's "Unicode text" export produces.
//
// Decoding is incremental: runes split across reads are reassembled, so
// memory stays bounded by the transformer's buffer.
func WrapForStreaming(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

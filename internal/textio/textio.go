// Package textio prepares raw input bytes for line and CSV parsing.
//
// Exported files from spreadsheet tools arrive with a UTF-8 BOM, in a legacy
// code page, or with stray invalid bytes. NewReader normalizes all three into
// valid UTF-8 without buffering the whole input:
//
//   - UTF-8 input: the BOM is dropped and invalid bytes become '?'
//   - any other encoding: decoded to UTF-8 via golang.org/x/text
//
// CountingReader tracks bytes consumed for run summaries.
package textio

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is assumed when no encoding is configured.
const DefaultEncoding = "utf-8"

// NewReader wraps r so that it yields BOM-free, valid UTF-8.
// encoding accepts any WHATWG label ("utf-8", "windows-1252", "latin1", ...).
func NewReader(r io.Reader, encoding string) (io.Reader, error) {
	if isUTF8(encoding) {
		bomless := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
		return NewSanitizer(bomless), nil
	}

	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ValidEncoding reports whether encoding is a label NewReader accepts.
func ValidEncoding(encoding string) bool {
	if isUTF8(encoding) {
		return true
	}
	_, err := htmlindex.Get(encoding)
	return err == nil
}

func isUTF8(encoding string) bool {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// Sanitizer replaces invalid UTF-8 bytes with '?' on the fly.
// Multi-byte sequences split across reads are held back until complete, and
// sanitized bytes are handed out in whatever size the caller asks for.
type Sanitizer struct {
	reader  io.Reader
	scratch []byte
	pending []byte // raw tail of an incomplete sequence
	ready   []byte // sanitized bytes not yet returned
	err     error
}

// NewSanitizer creates a streaming UTF-8 sanitizer.
func NewSanitizer(r io.Reader) *Sanitizer {
	return &Sanitizer{reader: r, scratch: make([]byte, 4096)}
}

// Read implements io.Reader.
func (s *Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.ready) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		n, err := s.reader.Read(s.scratch)
		s.pending = append(s.pending, s.scratch[:n]...)
		s.err = err
		// Any read error ends the stream, so a held-back tail is flushed.
		s.ready, s.pending = sanitize(s.ready[:0], s.pending, err != nil)
	}

	n := copy(p, s.ready)
	s.ready = s.ready[n:]
	return n, nil
}

// sanitize appends the valid UTF-8 form of data to dst. Unless final, an
// incomplete trailing sequence is returned as rest instead.
func sanitize(dst, data []byte, final bool) (out, rest []byte) {
	for read := 0; read < len(data); {
		if data[read] < utf8.RuneSelf {
			dst = append(dst, data[read])
			read++
			continue
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !final && !utf8.FullRune(data[read:]) {
				return dst, append(data[:0], data[read:]...)
			}
			dst = append(dst, '?')
			read++
			continue
		}

		dst = append(dst, data[read:read+size]...)
		read += size
	}
	return dst, data[:0]
}

// CountingReader tracks the number of bytes read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

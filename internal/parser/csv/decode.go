package csv

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding resolves a configured encoding name. UTF-8 resolves to
// encoding.Nop since the bytes are already in the form encoding/csv expects.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "", "utf-8", "utf8":
		return encoding.Nop, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// NewDecodingReader wraps r so that it yields UTF-8 decoded from the named
// single-byte encoding. Decoding is streamed; nothing is buffered beyond the
// transformer's internal window.
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := Encoding(name)
	if err != nil {
		return nil, err
	}
	if enc == encoding.Nop {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

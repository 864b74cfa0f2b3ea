// Package csv reads delimited text in fixed-size row chunks.
//
// A ChunkReader decodes the source from its configured single-byte encoding,
// consumes the header row and then yields chunks of exactly ChunkSize rows;
// only the last chunk may be shorter. Chunk membership is decided here and
// nowhere else, so anything computed per chunk downstream is stable across
// runs over the same input.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultChunkSize is used when Options.ChunkSize is not positive.
const DefaultChunkSize = 5000

// Options configure a ChunkReader.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Encoding names the source encoding, see Encoding.
	Encoding string
	// ChunkSize is the number of data rows per chunk.
	ChunkSize int
}

// Chunk is one contiguous window of data rows.
type Chunk struct {
	// Index is the 0-based position of the chunk in the file.
	Index int
	// Rows hold trimmed cells, each row exactly as wide as the header.
	Rows [][]string
	// Lines[i] is the 1-based source line on which Rows[i] starts.
	Lines []int
}

// Len returns the number of rows in the chunk.
func (c *Chunk) Len() int { return len(c.Rows) }

// ChunkReader is a forward-only chunk iterator. It is not safe for
// concurrent use.
type ChunkReader struct {
	src    io.Closer
	cr     *csv.Reader
	header []string
	size   int
	next   int
	done   bool
}

// NewChunkReader wraps src and reads the header row. The reader takes
// ownership of src and closes it in Close.
func NewChunkReader(src io.ReadCloser, opt Options) (*ChunkReader, error) {
	dec, err := NewDecodingReader(src, opt.Encoding)
	if err != nil {
		src.Close()
		return nil, err
	}

	cr := csv.NewReader(dec)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	// Width is checked against the header below.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	h, err := cr.Read()
	if err != nil {
		src.Close()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := normalizeHeader(h)
	if err := checkHeader(header); err != nil {
		src.Close()
		return nil, err
	}

	size := opt.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkReader{src: src, cr: cr, header: header, size: size}, nil
}

// Header returns the normalized header. Callers must not modify it.
func (r *ChunkReader) Header() []string { return r.header }

// ChunkSize returns the configured number of rows per chunk.
func (r *ChunkReader) ChunkSize() int { return r.size }

// Next returns the next chunk, or io.EOF once the input is exhausted.
// A row wider than the header is a parse error; a shorter row is padded
// with empty cells, which the cleaning chain treats as missing values.
func (r *ChunkReader) Next(ctx context.Context) (*Chunk, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := len(r.header)
	c := &Chunk{
		Index: r.next,
		Rows:  make([][]string, 0, r.size),
		Lines: make([]int, 0, r.size),
	}
	for len(c.Rows) < r.size {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		line, _ := r.cr.FieldPos(0)
		if len(rec) > width {
			return nil, fmt.Errorf("parse: line %d: expected %d fields, got %d", line, width, len(rec))
		}

		row := make([]string, width)
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		c.Rows = append(c.Rows, row)
		c.Lines = append(c.Lines, line)
	}

	if len(c.Rows) == 0 {
		return nil, io.EOF
	}
	r.next++
	return c, nil
}

// Close releases the underlying source.
func (r *ChunkReader) Close() error {
	return r.src.Close()
}

// StreamChunks sends every chunk of r to out in order and returns nil at
// EOF. It does not close out.
func StreamChunks(ctx context.Context, r *ChunkReader, out chan<- *Chunk) error {
	for {
		c, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// normalizeHeader trims cells and strips a leading BOM. Case is preserved:
// column names are matched exactly downstream.
func normalizeHeader(h []string) []string {
	out := StripHeaderBOM(append([]string(nil), h...))
	for i, v := range out {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func checkHeader(h []string) error {
	seen := make(map[string]struct{}, len(h))
	for i, name := range h {
		if name == "" {
			return fmt.Errorf("read csv header: column %d has no name", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("read csv header: duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

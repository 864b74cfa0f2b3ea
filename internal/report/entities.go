package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pcsv "transportetl/internal/parser/csv"
)

// Entity reference columns.
const (
	ColEntityID   = "ID_ENTIDAD"
	ColEntityName = "NOM_ENTIDAD"
)

// Entities maps a normalized ID_ENTIDAD to NOM_ENTIDAD.
type Entities map[string]string

// Name returns the entity name for id and whether it is known.
func (e Entities) Name(id string) (string, bool) {
	n, ok := e[entityKey(id)]
	return n, ok
}

// ReadEntities loads the entity reference CSV at path.
func ReadEntities(path, encoding string) (Entities, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entities: %w", err)
	}
	defer f.Close()
	return ParseEntities(f, encoding)
}

// ParseEntities reads a CSV with ID_ENTIDAD and NOM_ENTIDAD columns. Other
// columns are ignored; a repeated ID keeps its first name.
func ParseEntities(r io.Reader, encoding string) (Entities, error) {
	dr, err := pcsv.NewDecodingReader(r, encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dr)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("entities: empty input")
		}
		return nil, fmt.Errorf("entities: read header: %w", err)
	}
	header = pcsv.StripHeaderBOM(header)
	idIx, nameIx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case ColEntityID:
			idIx = i
		case ColEntityName:
			nameIx = i
		}
	}
	if idIx < 0 || nameIx < 0 {
		return nil, fmt.Errorf("entities: header must contain %s and %s, got %v", ColEntityID, ColEntityName, header)
	}

	out := make(Entities)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("entities: %w", err)
		}
		if idIx >= len(rec) || nameIx >= len(rec) {
			continue
		}
		k := entityKey(rec[idIx])
		if k == "" {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = strings.TrimSpace(rec[nameIx])
		}
	}
}

// entityKey normalizes numeric IDs so "09", "9" and "9.0" join.
func entityKey(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return id
}

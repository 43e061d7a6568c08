// Package snapshot exports the whole record index as a versioned JSON
// document (optionally gzip-compressed) and decodes such documents back into
// records for import or a full storage rebuild.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/yungbote/award-ledger/internal/domain"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

// FormatVersion is the document version this build writes and the newest it
// reads.
const FormatVersion = 1

const CompressedSuffix = ".gz"

type Meta struct {
	Version     int    `json:"version"`
	GeneratedAt int64  `json:"generatedAt"`
	RecordCount int    `json:"recordCount"`
	SnapshotID  string `json:"snapshotId,omitempty"`
}

// Record is one student in the document. Labels always carries the full
// slot array, empty strings included, because slot position is meaningful.
type Record struct {
	StudentID          int64    `json:"studentId"`
	Name               string   `json:"name"`
	ClassName          string   `json:"className"`
	CertTotalPoints    float64  `json:"certTotalPoints"`
	AwardTotalPoints   float64  `json:"awardTotalPoints"`
	RecordedAwardCount int      `json:"recordedAwardCount"`
	Labels             []string `json:"labels"`
}

type Document struct {
	Meta    Meta     `json:"meta"`
	Records []Record `json:"records"`
}

type Codec struct {
	Now   func() time.Time
	NewID func() string
}

func NewCodec() *Codec {
	return &Codec{Now: time.Now, NewID: uuid.NewString}
}

// IsCompressed decides the encoding from the file name alone.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedSuffix)
}

// Export builds the document for records, preserving their order.
func (c *Codec) Export(records []*domain.AwardRecord) Document {
	doc := Document{
		Meta: Meta{
			Version:     FormatVersion,
			GeneratedAt: c.Now().UnixMilli(),
			RecordCount: len(records),
			SnapshotID:  c.NewID(),
		},
		Records: make([]Record, 0, len(records)),
	}
	for _, r := range records {
		doc.Records = append(doc.Records, Record{
			StudentID:          r.StudentID,
			Name:               r.Name,
			ClassName:          r.ClassName,
			CertTotalPoints:    r.CertTotalPoints,
			AwardTotalPoints:   r.AwardTotalPoints,
			RecordedAwardCount: r.RecordedAwardCount,
			Labels:             r.Labels(),
		})
	}
	return doc
}

// Encode writes doc as indented JSON, gzip-wrapped when compressed. Both
// forms carry identical JSON.
func Encode(w io.Writer, doc Document, compressed bool) error {
	if !compressed {
		return encodeJSON(w, doc)
	}
	zw := gzip.NewWriter(w)
	if err := encodeJSON(zw, doc); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func encodeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// WriteFile exports records to path. When compressed and path lacks the
// .gz suffix, the suffix is appended; the final path is returned.
func (c *Codec) WriteFile(path string, records []*domain.AwardRecord, compressed bool) (string, Document, error) {
	if compressed && !IsCompressed(path) {
		path += CompressedSuffix
	}
	doc := c.Export(records)

	var buf bytes.Buffer
	if err := Encode(&buf, doc, IsCompressed(path)); err != nil {
		return "", Document{}, err
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", Document{}, err
	}
	return path, doc, nil
}

// ReadFile decodes the snapshot at path, choosing gzip by suffix.
func (c *Codec) ReadFile(path string) ([]*domain.AwardRecord, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f, IsCompressed(path))
}

type wireMeta struct {
	Version     *int   `json:"version"`
	GeneratedAt int64  `json:"generatedAt"`
	RecordCount int    `json:"recordCount"`
	SnapshotID  string `json:"snapshotId"`
}

type wireRecord struct {
	StudentID          *int64            `json:"studentId"`
	Name               string            `json:"name"`
	ClassName          string            `json:"className"`
	CertTotalPoints    float64           `json:"certTotalPoints"`
	AwardTotalPoints   float64           `json:"awardTotalPoints"`
	RecordedAwardCount int               `json:"recordedAwardCount"`
	Labels             []json.RawMessage `json:"labels"`
}

type wireDocument struct {
	Meta    *wireMeta     `json:"meta"`
	Records *[]wireRecord `json:"records"`
}

// Decode reads a document and returns its records. Optional fields default
// to zero values, label arrays are padded or truncated to capacity, and
// non-string labels are coerced by labelText. Any structural problem is reported as
// ErrDecode before a single record is returned.
func Decode(r io.Reader, compressed bool) ([]*domain.AwardRecord, Meta, error) {
	if compressed {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("%w: gzip: %v", apperr.ErrDecode, err)
		}
		defer zr.Close()
		r = zr
	}

	var wire wireDocument
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	if wire.Records == nil {
		return nil, Meta{}, fmt.Errorf("%w: missing records array", apperr.ErrDecode)
	}

	meta := Meta{Version: FormatVersion}
	if wire.Meta != nil {
		if wire.Meta.Version != nil {
			meta.Version = *wire.Meta.Version
		}
		meta.GeneratedAt = wire.Meta.GeneratedAt
		meta.RecordCount = wire.Meta.RecordCount
		meta.SnapshotID = wire.Meta.SnapshotID
	}
	if meta.Version > FormatVersion {
		return nil, meta, fmt.Errorf("%w: version %d is newer than supported %d", apperr.ErrDecode, meta.Version, FormatVersion)
	}

	seen := make(map[int64]int, len(*wire.Records))
	out := make([]*domain.AwardRecord, 0, len(*wire.Records))
	for i, wr := range *wire.Records {
		if wr.StudentID == nil {
			return nil, meta, fmt.Errorf("%w: record %d has no studentId", apperr.ErrDecode, i)
		}
		id := *wr.StudentID
		if prev, dup := seen[id]; dup {
			return nil, meta, fmt.Errorf("%w: studentId %d repeated at records %d and %d", apperr.ErrDecode, id, prev, i)
		}
		seen[id] = i

		rec := domain.NewAwardRecord(id, wr.Name, wr.ClassName)
		rec.CertTotalPoints = wr.CertTotalPoints
		rec.AwardTotalPoints = wr.AwardTotalPoints
		rec.RecordedAwardCount = wr.RecordedAwardCount
		for slot, l := range wr.Labels {
			if slot >= domain.LabelCapacity {
				break
			}
			rec.AwardLabels[slot] = labelText(l)
		}
		out = append(out, rec)
	}
	return out, meta, nil
}

// labelText reads a label the way older writers may have produced it:
// strings as-is, numbers and booleans as their literal text, and null,
// objects or arrays as an empty slot.
func labelText(raw json.RawMessage) string {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(v)
	}
}

// MismatchedCount reports whether the declared recordCount disagrees with
// the records actually present. It is informational only.
func (m Meta) MismatchedCount(n int) bool {
	return m.RecordCount != 0 && m.RecordCount != n
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", werr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

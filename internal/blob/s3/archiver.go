package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// multipartThreshold is the body size above which raw archives are uploaded
// in parts.
const multipartThreshold = 8 << 20

// Archiver writes raw feed bodies and bookmark exports to blob storage and
// records each write in the audit log when one is configured.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	now    func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit, now: time.Now}
}

// ArchiveRaw stores a feed response body at key unchanged.
func (a *Archiver) ArchiveRaw(ctx context.Context, key string, body []byte) error {
	var err error
	if len(body) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(body), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(body), "application/json")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive raw: %w", err)
	}
	return nil
}

// ExportBookmarks writes recs as JSONL under prefix and returns the object
// key. An empty export is still written so the caller gets a key back.
func (a *Archiver) ExportBookmarks(ctx context.Context, prefix string, recs []domain.BookmarkRecord) (string, error) {
	buf, err := marshalJSONL(recs)
	if err != nil {
		return "", fmt.Errorf("s3blob: export bookmarks: %w", err)
	}

	key := exportPath(prefix, a.now())
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: export bookmarks: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "bookmarks.exported", map[string]any{
			"path":  key,
			"count": len(recs),
		}); err != nil {
			return key, fmt.Errorf("s3blob: export bookmarks audit: %w", err)
		}
	}
	return key, nil
}

// exportPath partitions exports by day:
//
//	bookmarks/2024-05-01/bookmarks-1714560000.jsonl
func exportPath(prefix string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		at.Format("2006-01-02"),
		fmt.Sprintf("bookmarks-%d.jsonl", at.Unix()),
	)
}

// marshalJSONL encodes records one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

package oddsapi

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// ArchivePath is where a raw response body is stored:
// {prefix}/{bookmaker}/{yyyy}/{mm}/{dd}/{unix}-{fetchID}.json
func ArchivePath(prefix, bookmaker string, fetchedAt time.Time, fetchID string) string {
	t := fetchedAt.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		bookmaker,
		t.Format("2006"), t.Format("01"), t.Format("02"),
		fmt.Sprintf("%d-%s.json", t.Unix(), fetchID),
	)
}

// ParseArchivePath recovers the bookmaker and fetch time from a path built by
// ArchivePath.
func ParseArchivePath(prefix, p string) (bookmaker string, fetchedAt time.Time, err error) {
	rest := strings.TrimPrefix(strings.Trim(p, "/"), strings.Trim(prefix, "/")+"/")
	parts := strings.Split(rest, "/")
	if len(parts) != 5 {
		return "", time.Time{}, fmt.Errorf("oddsapi: %q is not an archive path", p)
	}
	var unix int64
	if _, err := fmt.Sscanf(parts[4], "%d-", &unix); err != nil {
		return "", time.Time{}, fmt.Errorf("oddsapi: %q has no timestamp: %w", p, err)
	}
	return parts[0], time.Unix(unix, 0).UTC(), nil
}

// ArchiveSource replays archived response bodies from blob storage through
// the same extraction as live fetches.
type ArchiveSource struct {
	reader domain.BlobReader
	prefix string
}

// NewArchiveSource creates an ArchiveSource rooted at prefix.
func NewArchiveSource(reader domain.BlobReader, prefix string) *ArchiveSource {
	return &ArchiveSource{reader: reader, prefix: prefix}
}

// Load reads one archived body.
func (s *ArchiveSource) Load(ctx context.Context, p string) (Response, error) {
	bookmaker, fetchedAt, err := ParseArchivePath(s.prefix, p)
	if err != nil {
		return Response{}, err
	}
	rc, err := s.reader.Get(ctx, p)
	if err != nil {
		return Response{}, fmt.Errorf("oddsapi: load archive %s: %w", p, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("oddsapi: read archive %s: %w", p, err)
	}
	return Response{
		Extraction: Extract(body),
		Bookmaker:  bookmaker,
		Body:       body,
		FetchedAt:  fetchedAt,
	}, nil
}

// Latest returns the newest archived path for bookmaker.
func (s *ArchiveSource) Latest(ctx context.Context, bookmaker string) (string, error) {
	infos, err := s.reader.List(ctx, path.Join(strings.Trim(s.prefix, "/"), bookmaker)+"/")
	if err != nil {
		return "", fmt.Errorf("oddsapi: list archive for %s: %w", bookmaker, err)
	}
	var latest string
	for _, info := range infos {
		if info.Path > latest {
			latest = info.Path
		}
	}
	if latest == "" {
		return "", fmt.Errorf("oddsapi: no archive for %s: %w", bookmaker, domain.ErrNotFound)
	}
	return latest, nil
}

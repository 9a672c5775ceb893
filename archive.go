package parcel

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchiveExtension is appended to the key of compressed payloads.
const ArchiveExtension = ".zip"

// BuildArchive serializes entries into an in-memory zip archive.
// A repeated name keeps its first position and its last contents.
// Every entry is deflated and stamped with modified.
func BuildArchive(entries []ArchiveEntry, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range dedupe(entries) {
		if entry.Name == "" {
			_ = zw.Close()
			return nil, fmt.Errorf("%w: entry name must not be empty", ErrArchive)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("%w: %w", ErrArchive, err)
		}
		if _, err := w.Write(entry.Contents); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("%w: %w", ErrArchive, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	return buf.Bytes(), nil
}

func dedupe(entries []ArchiveEntry) []ArchiveEntry {
	index := make(map[string]int, len(entries))
	out := make([]ArchiveEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Name]; ok {
			out[i].Contents = e.Contents
			continue
		}
		index[e.Name] = len(out)
		out = append(out, e)
	}
	return out
}

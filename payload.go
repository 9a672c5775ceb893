package parcel

import "sort"

// ArchiveEntry is one named file inside a constructed archive.
type ArchiveEntry struct {
	Name     string
	Contents []byte
}

// Payload is the data handed to Publish: either a single raw value or a
// set of named entries. A payload of named entries always counts as
// multiple files, even when it holds a single entry.
type Payload struct {
	raw     []byte
	entries []ArchiveEntry
	named   bool
}

// Bytes returns a payload holding a single raw value.
func Bytes(b []byte) *Payload {
	if b == nil {
		b = []byte{}
	}
	return &Payload{raw: b}
}

// String returns a payload holding a single raw string value.
func String(s string) *Payload {
	return &Payload{raw: []byte(s)}
}

// Files returns a payload of named entries taken from m.
// Entries are ordered by name so the resulting archive is deterministic.
func Files(m map[string][]byte) *Payload {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]ArchiveEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, ArchiveEntry{Name: name, Contents: m[name]})
	}
	return &Payload{entries: entries, named: true}
}

// Entries returns a payload of named entries in the given order.
// When names repeat, the last entry wins.
func Entries(entries ...ArchiveEntry) *Payload {
	out := make([]ArchiveEntry, len(entries))
	copy(out, entries)
	return &Payload{entries: out, named: true}
}

// MultipleFiles reports whether the payload is a set of named entries.
func (p *Payload) MultipleFiles() bool {
	return p.named
}

// Raw returns the single raw value, or nil for named entries.
func (p *Payload) Raw() []byte {
	return p.raw
}

// ArchiveEntries returns the named entries, or nil for a raw value.
func (p *Payload) ArchiveEntries() []ArchiveEntry {
	return p.entries
}

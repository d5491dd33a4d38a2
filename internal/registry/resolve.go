package registry

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the identifier matched nothing in the current snapshot.
	ErrNotFound = errors.New("instance not found")
	// ErrAmbiguousName means the name is shared by several instances; callers
	// must tell the operator to use an index or UUID instead.
	ErrAmbiguousName = errors.New("instance name is ambiguous")
)

// Resolve maps one identifier to a record of the current snapshot. It never
// triggers a refresh; a stale or empty directory simply fails to resolve.
func (d *Directory) Resolve(identifier string) (Record, error) {
	id := strings.TrimSpace(identifier)

	d.mu.RLock()
	defer d.mu.RUnlock()

	switch Classify(id) {
	case KindNumber:
		// A numeric identifier is only ever an index, even when an instance
		// happens to carry the same digits as its name.
		n, err := strconv.Atoi(id)
		if err != nil || n < 1 || n > len(d.snap.records) {
			return Record{}, ErrNotFound
		}
		rec := d.snap.records[n-1]
		// Build-time filtering already excluded non-matching names; re-check
		// in case the snapshot predates a config change.
		if !d.matchesFilter(rec.Name) {
			return Record{}, ErrNotFound
		}
		return rec, nil

	case KindUUID:
		rec, ok := d.snap.uuidToRec[id]
		if !ok {
			return Record{}, ErrNotFound
		}
		return rec, nil

	default:
		if _, dup := d.snap.ambiguous[id]; dup {
			return Record{}, ErrAmbiguousName
		}
		rec, ok := d.snap.nameToRec[id]
		if !ok {
			return Record{}, ErrNotFound
		}
		return rec, nil
	}
}

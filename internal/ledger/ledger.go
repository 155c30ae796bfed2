// Package ledger tracks which items a stage has already accepted.
//
// Items are identified by a content fingerprint (SHA-256 of the natural ID)
// so the persisted ledger is stable across machines and never stores the IDs
// themselves.
package ledger

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"reviewharvest/internal/fileutil"
)

// Fingerprint returns the lowercase hex SHA-256 digest of naturalID.
func Fingerprint(naturalID string) string {
	sum := sha256.Sum256([]byte(naturalID))
	return hex.EncodeToString(sum[:])
}

// Ledger is an in-memory set of fingerprints for one dedup domain.
// It is not safe for concurrent use.
type Ledger struct {
	digests map[string]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{digests: make(map[string]struct{})}
}

// Load reads the ledger at path. A missing file yields an empty ledger.
// Blank lines are ignored and repeated digests collapse into one entry.
func Load(path string) (*Ledger, error) {
	l := New()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		l.digests[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", filepath.Base(path), err)
	}
	return l, nil
}

// IsNew reports whether naturalID has not been recorded.
func (l *Ledger) IsNew(naturalID string) bool {
	return !l.Contains(Fingerprint(naturalID))
}

// Contains reports whether the digest is present.
func (l *Ledger) Contains(digest string) bool {
	_, ok := l.digests[strings.ToLower(strings.TrimSpace(digest))]
	return ok
}

// Record adds naturalID to the in-memory set and reports whether it was new.
// Nothing is written until Persist.
func (l *Ledger) Record(naturalID string) bool {
	digest := Fingerprint(naturalID)
	if _, ok := l.digests[digest]; ok {
		return false
	}
	l.digests[digest] = struct{}{}
	return true
}

// Len returns the number of recorded fingerprints.
func (l *Ledger) Len() int {
	return len(l.digests)
}

// Digests returns the recorded fingerprints in sorted order.
func (l *Ledger) Digests() []string {
	out := make([]string, 0, len(l.digests))
	for d := range l.digests {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Persist overwrites path with the full set, one digest per line, sorted.
// The write is atomic so a crash leaves either the old or the new ledger.
func (l *Ledger) Persist(path string) error {
	var buf bytes.Buffer
	for _, d := range l.Digests() {
		buf.WriteString(d)
		buf.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist ledger %s: %w", filepath.Base(path), err)
	}
	return nil
}

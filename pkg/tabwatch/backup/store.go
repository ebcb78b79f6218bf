package backup

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/checksum"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

// ErrNotFound is returned when no record matches a backup ID.
var ErrNotFound = errors.New("backup not found")

// ErrChecksumMismatch is returned when stored content no longer matches
// the checksum its record declares.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Store manages versioned backups under a single directory. The on-disk
// index and the payload files are kept in lock-step: a record exists iff
// its payload exists.
type Store struct {
	opts Options

	mu      sync.Mutex
	records []Record
	// versions carries the per-path high-water mark so version numbers
	// are never reused, even after records are pruned.
	versions map[string]int

	log *logging.Logger
}

// New creates a Store. Initialize must be called before use.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("backup directory cannot be empty")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = checksum.XXHash64
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = gzip.DefaultCompression
	}

	return &Store{
		opts:     opts,
		versions: make(map[string]int),
		log:      logging.Get("backup"),
	}, nil
}

// Initialize ensures the backup directory exists and loads the persisted
// index into memory.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			s.records = []Record{}
			return nil
		}
		return fmt.Errorf("reading backup index: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing backup index: %w", err)
	}

	s.records = records
	for _, r := range records {
		if r.Version > s.versions[r.OriginalPath] {
			s.versions[r.OriginalPath] = r.Version
		}
	}

	return nil
}

// Create backs up the file at path. The retention policy for that path is
// applied immediately afterwards. Failures never leave an orphan payload
// or a dangling record behind.
func (s *Store) Create(path, context string, tags ...string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.createLocked(path, context, tags...)
	if err != nil {
		s.log.Error("backup failed", "path", path, "error", err)
		return nil, err
	}

	if deleted, err := s.applyRetentionLocked(path); err != nil {
		s.log.Warn("retention sweep failed", "path", path, "error", err)
	} else if len(deleted) > 0 {
		s.log.Info("retention pruned backups", "path", path, "count", len(deleted))
	}

	return rec, nil
}

// createLocked does the actual backup work. Caller holds s.mu.
func (s *Store) createLocked(path, context string, tags ...string) (*Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}

	sum, err := checksum.Bytes(data, s.opts.Algorithm)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	version := s.versions[abs] + 1

	name := fmt.Sprintf("%s_v%d%s", id, version, filepath.Ext(abs))
	if s.opts.Compress {
		name += ".gz"
	}
	backupPath := filepath.Join(s.opts.Dir, name)

	if err := s.writePayload(backupPath, data); err != nil {
		return nil, fmt.Errorf("writing backup payload: %w", err)
	}

	rec := Record{
		ID:                id,
		OriginalPath:      abs,
		BackupPath:        backupPath,
		Timestamp:         time.Now().UTC(),
		FileSize:          int64(len(data)),
		Checksum:          sum,
		ChecksumAlgorithm: s.opts.Algorithm,
		Compressed:        s.opts.Compress,
		Version:           version,
		Context:           context,
		Tags:              tags,
	}

	next := append(append([]Record{}, s.records...), rec)
	if err := s.persistIndex(next); err != nil {
		// Keep the prior index state; remove the payload we just wrote.
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("persisting backup index: %w", err)
	}

	s.records = next
	s.versions[abs] = version

	s.log.Info("backup created", "path", abs, "id", id, "version", version, "bytes", rec.FileSize)
	return &rec, nil
}

// writePayload writes data to path atomically, compressing when configured.
func (s *Store) writePayload(path string, data []byte) error {
	out := data
	if s.opts.Compress {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, s.opts.CompressionLevel)
		if err != nil {
			return fmt.Errorf("creating gzip writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compressing payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("finishing compression: %w", err)
		}
		out = buf.Bytes()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// readPayload returns the decompressed content of a backup payload.
func readPayload(rec *Record) ([]byte, error) {
	f, err := os.Open(rec.BackupPath)
	if err != nil {
		return nil, fmt.Errorf("opening backup payload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if rec.Compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip payload: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading backup payload: %w", err)
	}
	return data, nil
}

// Restore writes the backed-up content over targetPath (the original path
// when targetPath is empty). If the target exists, a safety backup of its
// current content is taken first. A failed restore write is rolled back to
// the safety backup on a best-effort basis.
func (s *Store) Restore(id, targetPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findLocked(id)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	target := targetPath
	if target == "" {
		target = rec.OriginalPath
	}

	data, err := readPayload(rec)
	if err != nil {
		return err
	}

	var safety *Record
	if _, err := os.Stat(target); err == nil {
		safety, err = s.createLocked(target, "pre-restore safety backup", "pre-restore")
		if err != nil {
			return fmt.Errorf("taking safety backup: %w", err)
		}
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		writeErr := fmt.Errorf("restoring %q: %w", target, err)
		if safety != nil {
			if rbErr := s.rollbackLocked(safety, target); rbErr != nil {
				// Report the rollback failure alongside, never instead of,
				// the original error.
				return errors.Join(writeErr, fmt.Errorf("rollback to safety backup failed: %w", rbErr))
			}
			s.log.Warn("restore failed, rolled back to safety backup", "target", target, "safety_id", safety.ID)
		}
		return writeErr
	}

	restoredSum, err := checksum.File(target, rec.ChecksumAlgorithm)
	if err != nil {
		return fmt.Errorf("verifying restored file: %w", err)
	}
	if restoredSum != rec.Checksum {
		return fmt.Errorf("%w: restored %q does not match record %s", ErrChecksumMismatch, target, rec.ID)
	}

	s.log.Info("backup restored", "id", id, "target", target, "version", rec.Version)
	return nil
}

// rollbackLocked copies a safety backup's payload back over target.
func (s *Store) rollbackLocked(safety *Record, target string) error {
	data, err := readPayload(safety)
	if err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// Verify recomputes the payload checksum and compares it against the
// record. It never returns an error; unreadable payloads verify false.
func (s *Store) Verify(id string) bool {
	s.mu.Lock()
	rec := s.findLocked(id)
	s.mu.Unlock()

	if rec == nil {
		return false
	}

	data, err := readPayload(rec)
	if err != nil {
		s.log.Warn("verification could not read payload", "id", id, "error", err)
		return false
	}

	sum, err := checksum.Bytes(data, rec.ChecksumAlgorithm)
	if err != nil {
		return false
	}
	return sum == rec.Checksum
}

// Content returns the decompressed content of a backup payload.
func (s *Store) Content(id string) ([]byte, error) {
	s.mu.Lock()
	rec := s.findLocked(id)
	s.mu.Unlock()

	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return readPayload(rec)
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findLocked(id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

// Delete removes a backup record and its payload.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	idx := -1
	for i := range s.records {
		if s.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec := s.records[idx]
	next := make([]Record, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)

	if err := s.persistIndex(next); err != nil {
		return fmt.Errorf("persisting backup index: %w", err)
	}
	s.records = next

	if err := os.Remove(rec.BackupPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove backup payload", "id", id, "path", rec.BackupPath, "error", err)
	}

	return nil
}

// List returns records matching the filter.
func (s *Store) List(f Filter) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.records {
		if f.OriginalPath != "" && r.OriginalPath != f.OriginalPath {
			continue
		}
		if !f.After.IsZero() && r.Timestamp.Before(f.After) {
			continue
		}
		if !f.Before.IsZero() && r.Timestamp.After(f.Before) {
			continue
		}
		tagsOK := true
		for _, tag := range f.Tags {
			if !r.HasTag(tag) {
				tagsOK = false
				break
			}
		}
		if !tagsOK {
			continue
		}
		out = append(out, r)
	}

	sortField := f.SortBy
	if sortField == "" {
		sortField = SortByTimestamp
	}
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch sortField {
		case SortBySize:
			less = out[i].FileSize < out[j].FileSize
		case SortByVersion:
			less = out[i].Version < out[j].Version
		default:
			less = out[i].Timestamp.Before(out[j].Timestamp)
		}
		if f.Descending {
			return !less
		}
		return less
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Latest returns the most recent backup of path, excluding any IDs given.
func (s *Store) Latest(path string, excludeIDs ...string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Record
	for i := range s.records {
		r := &s.records[i]
		if r.OriginalPath != path {
			continue
		}
		excluded := false
		for _, id := range excludeIDs {
			if r.ID == id {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if best == nil || r.Version > best.Version {
			best = r
		}
	}
	if best == nil {
		return nil, false
	}
	cp := *best
	return &cp, true
}

// Count returns the number of records, and the total payload bytes.
func (s *Store) Count() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bytes int64
	for _, r := range s.records {
		bytes += r.FileSize
	}
	return len(s.records), bytes
}

// ApplyRetention runs a retention sweep for one original path. It is run
// automatically after every Create; this entry point exists for manual
// sweeps.
func (s *Store) ApplyRetention(path string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return s.applyRetentionLocked(abs)
}

// applyRetentionLocked deletes oldest-first excess beyond MaxBackups and
// anything older than MaxAge, never reducing the count below MinBackups.
func (s *Store) applyRetentionLocked(path string) ([]Record, error) {
	policy := s.opts.Retention
	if policy.MaxBackups <= 0 && policy.MaxAge <= 0 {
		return nil, nil
	}

	var mine []Record
	for _, r := range s.records {
		if r.OriginalPath == path {
			mine = append(mine, r)
		}
	}

	// Oldest first.
	sort.Slice(mine, func(i, j int) bool { return mine[i].Version < mine[j].Version })

	keep := len(mine)
	cutoff := time.Time{}
	if policy.MaxAge > 0 {
		cutoff = time.Now().Add(-policy.MaxAge)
	}

	var deleted []Record
	for _, r := range mine {
		if keep <= policy.MinBackups {
			break
		}
		overCount := policy.MaxBackups > 0 && keep > policy.MaxBackups
		tooOld := !cutoff.IsZero() && r.Timestamp.Before(cutoff)
		if !overCount && !tooOld {
			break
		}
		if err := s.deleteLocked(r.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, r)
		keep--
	}

	return deleted, nil
}

// findLocked returns a pointer into s.records, or nil. Caller holds s.mu.
func (s *Store) findLocked(id string) *Record {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i]
		}
	}
	return nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.opts.Dir, IndexFileName)
}

// persistIndex writes the given record set atomically. The previous index
// file is untouched unless the full write and rename succeed.
func (s *Store) persistIndex(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming index: %w", err)
	}
	return nil
}

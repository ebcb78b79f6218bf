// Package changelog persists an append-only audit trail of change events
// in a Badger-backed store. Entries are never mutated after write; their
// order is the total order of processing.
package changelog

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

// Key prefixes for different data types
const (
	prefixEntry = "c:" // Entries keyed by sequence number
	prefixPath  = "p:" // Secondary index: originating path -> sequence
	keySequence = "m:seq"
)

// sequenceBandwidth is how many sequence numbers Badger leases at once.
const sequenceBandwidth = 64

// Metadata carries optional per-entry context produced by the cycle that
// logged the event.
type Metadata struct {
	// BackupID references the backup taken for this change, if any.
	BackupID string `json:"backup_id,omitempty"`

	// Valid is the validation verdict, nil when validation did not run.
	Valid *bool `json:"valid,omitempty"`

	ErrorCount   int `json:"error_count,omitempty"`
	WarningCount int `json:"warning_count,omitempty"`
	RowCount     int `json:"row_count,omitempty"`
	ColumnCount  int `json:"column_count,omitempty"`
}

// Entry is one persisted change record.
type Entry struct {
	ID       string        `json:"id"`
	Seq      uint64        `json:"seq"`
	Event    monitor.Event `json:"event"`
	Metadata *Metadata     `json:"metadata,omitempty"`
}

// Log is the append-only change log backed by Badger.
type Log struct {
	db  *badger.DB
	seq *badger.Sequence
	log *logging.Logger
}

// Open opens or creates a change log at the given directory.
func Open(dir string) (*Log, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable badger's own logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening change log: %w", err)
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening change log sequence: %w", err)
	}

	return &Log{db: db, seq: seq, log: logging.Get("changelog")}, nil
}

// Close releases the sequence lease and closes the store.
func (l *Log) Close() error {
	if err := l.seq.Release(); err != nil {
		_ = l.db.Close()
		return err
	}
	return l.db.Close()
}

// Append persists one entry for the event and returns it. Exactly one
// entry is expected per change event; the caller owns that contract.
func (l *Log) Append(event monitor.Event, meta *Metadata) (*Entry, error) {
	seq, err := l.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("allocating sequence: %w", err)
	}

	entry := &Entry{
		ID:       uuid.NewString(),
		Seq:      seq,
		Event:    event,
		Metadata: meta,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(seq), data); err != nil {
			return err
		}
		return txn.Set(pathKey(event.Path, seq), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting entry: %w", err)
	}

	l.log.Debug("entry appended", "seq", seq, "path", event.Path, "kind", string(event.Kind))
	return entry, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (l *Log) Recent(limit int) ([]Entry, error) {
	var entries []Entry

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		// Seek past the highest possible sequence key.
		seek := append([]byte(prefixEntry), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// ByPath returns up to limit entries for one originating file, newest
// first, via the secondary path index.
func (l *Log) ByPath(path string, limit int) ([]Entry, error) {
	var entries []Entry

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := pathPrefix(path)
		seek := append(pathPrefix(path), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			key := it.Item().Key()
			seq := binary.BigEndian.Uint64(key[len(key)-8:])

			item, err := txn.Get(entryKey(seq))
			if err != nil {
				return err
			}
			var entry Entry
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// Count returns the total number of entries.
func (l *Log) Count() (int, error) {
	count := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ExportJSON writes every entry, oldest first, as one JSON array.
func (l *Log) ExportJSON(w io.Writer) error {
	entries, err := l.all()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []Entry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// csvHeader is the column layout of the delimited export.
var csvHeader = []string{
	"seq", "id", "timestamp", "kind", "path", "size",
	"backup_id", "valid", "errors", "warnings", "rows", "columns",
}

// ExportCSV writes every entry, oldest first, in delimited form.
func (l *Log) ExportCSV(w io.Writer) error {
	entries, err := l.all()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range entries {
		meta := e.Metadata
		if meta == nil {
			meta = &Metadata{}
		}
		valid := ""
		if meta.Valid != nil {
			valid = strconv.FormatBool(*meta.Valid)
		}
		record := []string{
			strconv.FormatUint(e.Seq, 10),
			e.ID,
			e.Event.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			string(e.Event.Kind),
			e.Event.Path,
			strconv.FormatInt(e.Event.Size, 10),
			meta.BackupID,
			valid,
			strconv.Itoa(meta.ErrorCount),
			strconv.Itoa(meta.WarningCount),
			strconv.Itoa(meta.RowCount),
			strconv.Itoa(meta.ColumnCount),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// all returns every entry in sequence order.
func (l *Log) all() ([]Entry, error) {
	var entries []Entry

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// entryKey builds the primary key: c:<seq8>. Big-endian sequence bytes
// keep lexicographic order equal to numeric order.
func entryKey(seq uint64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], seq)
	return key
}

// pathPrefix builds the secondary index prefix: p:<path>\x00.
func pathPrefix(path string) []byte {
	prefix := make([]byte, 0, len(prefixPath)+len(path)+1)
	prefix = append(prefix, prefixPath...)
	prefix = append(prefix, path...)
	prefix = append(prefix, 0x00)
	return prefix
}

// pathKey builds the secondary index key: p:<path>\x00<seq8>.
func pathKey(path string, seq uint64) []byte {
	key := pathPrefix(path)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

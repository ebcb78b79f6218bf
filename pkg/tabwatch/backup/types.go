// Package backup provides durable, versioned, integrity-checked snapshots
// of watched files with automatic retention pruning.
package backup

import (
	"time"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/checksum"
)

// IndexFileName is the sidecar index persisted in the backup directory.
const IndexFileName = "backup-metadata.json"

// Record describes one versioned, checksummed snapshot of a file.
type Record struct {
	ID                string             `json:"id"`
	OriginalPath      string             `json:"original_path"`
	BackupPath        string             `json:"backup_path"`
	Timestamp         time.Time          `json:"timestamp"`
	FileSize          int64              `json:"file_size"`
	Checksum          string             `json:"checksum"`
	ChecksumAlgorithm checksum.Algorithm `json:"checksum_algorithm"`
	Compressed        bool               `json:"compressed"`
	Version           int                `json:"version"`
	Context           string             `json:"context,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RetentionPolicy bounds how many and how old backups are kept per file.
type RetentionPolicy struct {
	// MaxBackups is the maximum number of backups per original path.
	// Zero disables count-based pruning.
	MaxBackups int

	// MaxAge prunes backups older than this. Zero disables age pruning.
	MaxAge time.Duration

	// MinBackups are always kept regardless of age.
	MinBackups int
}

// SortField selects the ordering of List results.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortBySize      SortField = "size"
	SortByVersion   SortField = "version"
)

// Filter narrows and orders List results.
type Filter struct {
	// OriginalPath restricts results to backups of one file.
	OriginalPath string

	// After and Before bound the backup timestamp, when non-zero.
	After  time.Time
	Before time.Time

	// Tags requires every listed tag to be present.
	Tags []string

	// SortBy orders results; default timestamp.
	SortBy SortField

	// Descending reverses the sort order.
	Descending bool

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// Options configures a Store.
type Options struct {
	// Dir is the backup directory. Required.
	Dir string

	// Algorithm is the checksum algorithm for new backups.
	Algorithm checksum.Algorithm

	// Compress gzips backup payloads.
	Compress bool

	// CompressionLevel is the gzip level when Compress is set.
	CompressionLevel int

	// Retention is applied after every successful backup.
	Retention RetentionPolicy
}

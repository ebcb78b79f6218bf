package config

// Default values for the pipeline configuration.
const (
	// DefaultDebounceMillis is the filesystem event coalescing window.
	DefaultDebounceMillis = 500

	// DefaultChecksumAlgorithm is the digest used for baselines and backups.
	DefaultChecksumAlgorithm = "xxhash64"

	// DefaultMaxBackups bounds how many backups are kept per original file.
	DefaultMaxBackups = 10

	// DefaultMaxAgeDays bounds how old a kept backup may be.
	DefaultMaxAgeDays = 90

	// DefaultMinBackups is never undercut by retention sweeps.
	DefaultMinBackups = 1

	// DefaultCompressionLevel is the gzip level for backup payloads.
	DefaultCompressionLevel = 6

	// DefaultErrorCap halts validation error collection once reached.
	DefaultErrorCap = 100

	// DefaultDiffMode is the comparison mode for automatic diffs.
	DefaultDiffMode = "structured"

	// DefaultMaxDiffRows is the row ceiling guarding diff memory use.
	DefaultMaxDiffRows = 100000

	// DefaultTopColumns is how many most-changed columns statistics rank.
	DefaultTopColumns = 5

	// DefaultDelimiter separates fields in watched files.
	DefaultDelimiter = ","
)

// DefaultReportFormats are the formats rendered for automatic diff reports.
var DefaultReportFormats = []string{"console", "json"}

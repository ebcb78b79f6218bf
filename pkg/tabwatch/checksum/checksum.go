// Package checksum provides content digests for backup integrity and
// change detection. Two algorithms are supported: xxhash64 for fast
// change detection and sha256 where a cryptographic digest is required.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

const (
	// XXHash64 is a fast non-cryptographic digest.
	XXHash64 Algorithm = "xxhash64"
	// SHA256 is a cryptographic digest.
	SHA256 Algorithm = "sha256"
)

// ErrUnknownAlgorithm is returned when an algorithm string is not recognized.
var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

// Parse converts a configuration string into an Algorithm.
func Parse(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "xxhash64", "xxhash", "xxh64":
		return XXHash64, nil
	case "sha256", "sha-256":
		return SHA256, nil
	default:
		return XXHash64, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

// newHasher returns a hash.Hash for the algorithm.
func (a Algorithm) newHasher() (hash.Hash, error) {
	switch a {
	case XXHash64:
		return xxhash.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, string(a))
	}
}

// Reader computes the hex digest of everything read from r.
func Reader(r io.Reader, algo Algorithm) (string, error) {
	h, err := algo.newHasher()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes computes the hex digest of b.
func Bytes(b []byte, algo Algorithm) (string, error) {
	h, err := algo.newHasher()
	if err != nil {
		return "", err
	}
	_, _ = h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File computes the hex digest of the file at path.
func File(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	return Reader(f, algo)
}

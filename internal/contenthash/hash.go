// Package contenthash produces content-only hex digests of media files for
// duplicate detection.
package contenthash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"

	"reencode/internal/services"
)

// Supported algorithms.
const (
	AlgorithmXXH64  = "xxh64"
	AlgorithmSHA256 = "sha256"
)

const chunkSize = 1 << 20

// Hasher digests a byte stream. Digests depend on content only.
type Hasher interface {
	Algorithm() string
	Sum(ctx context.Context, r io.Reader) (string, error)
}

// New returns the hasher for algorithm.
func New(algorithm string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmXXH64:
		return streamHasher{name: AlgorithmXXH64, factory: func() hash.Hash { return xxhash.New() }}, nil
	case AlgorithmSHA256:
		return streamHasher{name: AlgorithmSHA256, factory: sha256.New}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "contenthash", "new", fmt.Sprintf("unsupported algorithm %q", algorithm), nil)
	}
}

type streamHasher struct {
	name    string
	factory func() hash.Hash
}

func (h streamHasher) Algorithm() string { return h.name }

// Sum reads r in chunks, checking ctx between chunks.
func (h streamHasher) Sum(ctx context.Context, r io.Reader) (string, error) {
	digest := h.factory()
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return h.name + ":" + hex.EncodeToString(digest.Sum(nil)), nil
}

// File hashes the content at path.
func File(ctx context.Context, h Hasher, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "contenthash", "open", path, err)
	}
	defer f.Close()
	sum, err := h.Sum(ctx, f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

var (
	ErrAlreadyFinalized = errors.New("checksum already finalized")
	ErrNotDrained       = errors.New("checksum finalized before end of stream")
)

// Digest is the result of hashing a complete stream.
type Digest struct {
	Checksum string
	Bytes    int64
}

// Transform is a pass-through reader that hashes every byte it hands out.
type Transform struct {
	src       io.Reader
	hash      hash.Hash
	bytes     int64
	eof       bool
	finalized bool
}

func NewTransform(src io.Reader) *Transform {
	return &Transform{
		src:  src,
		hash: sha256.New(),
	}
}

// Read forwards src unchanged. Read errors are returned as they come.
func (t *Transform) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.hash.Write(p[:n])
		t.bytes += int64(n)
	}
	if err == io.EOF {
		t.eof = true
	}
	return n, err
}

// Finalize returns the digest. It may be called once, after src hit EOF.
func (t *Transform) Finalize() (Digest, error) {
	if t.finalized {
		return Digest{}, ErrAlreadyFinalized
	}
	if !t.eof {
		return Digest{}, ErrNotDrained
	}
	t.finalized = true

	return Digest{
		Checksum: hex.EncodeToString(t.hash.Sum(nil)),
		Bytes:    t.bytes,
	}, nil
}

// Sum hashes r to the end.
func Sum(r io.Reader) (Digest, error) {
	hasher := sha256.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to hash content: %w", err)
	}
	return Digest{Checksum: hex.EncodeToString(hasher.Sum(nil)), Bytes: n}, nil
}

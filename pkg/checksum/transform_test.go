package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestTransform_PassThroughAndDigest(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10_000)

	tr := NewTransform(iotest.OneByteReader(bytes.NewReader(data)))
	var out bytes.Buffer
	n, err := io.Copy(&out, tr)
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, out.Bytes())

	d, err := tr.Finalize()
	require.NoError(t, err)
	assert.Equal(t, sha(data), d.Checksum)
	assert.Equal(t, int64(len(data)), d.Bytes)
}

func TestTransform_EmptyStream(t *testing.T) {
	tr := NewTransform(strings.NewReader(""))
	_, err := io.Copy(io.Discard, tr)
	require.NoError(t, err)

	d, err := tr.Finalize()
	require.NoError(t, err)
	assert.Equal(t, sha(nil), d.Checksum)
	assert.Zero(t, d.Bytes)
}

func TestTransform_FinalizeTwice(t *testing.T) {
	tr := NewTransform(strings.NewReader("abc"))
	_, err := io.Copy(io.Discard, tr)
	require.NoError(t, err)

	_, err = tr.Finalize()
	require.NoError(t, err)

	_, err = tr.Finalize()
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestTransform_FinalizeBeforeEOF(t *testing.T) {
	tr := NewTransform(strings.NewReader("abcdef"))
	buf := make([]byte, 2)
	_, err := tr.Read(buf)
	require.NoError(t, err)

	_, err = tr.Finalize()
	assert.ErrorIs(t, err, ErrNotDrained)
}

func TestTransform_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	tr := NewTransform(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)))

	_, err := io.Copy(io.Discard, tr)
	assert.ErrorIs(t, err, boom)

	_, err = tr.Finalize()
	assert.ErrorIs(t, err, ErrNotDrained)
}

func TestSum(t *testing.T) {
	d, err := Sum(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, sha([]byte("hello world")), d.Checksum)
	assert.Equal(t, int64(11), d.Bytes)
}

package rsync

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureDeltaPatchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	basis := filepath.Join(dir, "basis")
	current := filepath.Join(dir, "current")

	content := bytes.Repeat([]byte("relique delta transfer "), 4096)
	require.NoError(t, os.WriteFile(basis, content[:len(content)/2], 0o644))
	require.NoError(t, os.WriteFile(current, content, 0o644))

	sig, err := Signature(basis)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	delta, err := Delta(sig, current)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Patch(basis, delta, &out))
	assert.Equal(t, content, out.Bytes())
}

func TestEmptyBasisTransfersWholeFile(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current")
	payload := []byte("hello\n")
	require.NoError(t, os.WriteFile(current, payload, 0o644))

	sig, err := Signature(os.DevNull)
	require.NoError(t, err)

	delta, err := Delta(sig, current)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Patch(os.DevNull, delta, &out))
	assert.Equal(t, payload, out.Bytes())
}

func TestIdenticalContentYieldsSmallDelta(t *testing.T) {
	dir := t.TempDir()
	basis := filepath.Join(dir, "basis")

	content := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x42}, 64*1024)
	require.NoError(t, os.WriteFile(basis, content, 0o644))

	sig, err := Signature(basis)
	require.NoError(t, err)

	delta, err := Delta(sig, basis)
	require.NoError(t, err)
	assert.Less(t, len(delta), len(content)/10, "unchanged content should collapse to copy commands")

	var out bytes.Buffer
	require.NoError(t, Patch(basis, delta, &out))
	assert.Equal(t, content, out.Bytes())
}

func TestSignatureMissingFile(t *testing.T) {
	_, err := Signature(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

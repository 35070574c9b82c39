// Package rsync wraps the librsync primitives the delta protocol is
// built on: the server computes signatures of what it already holds,
// the client computes deltas against those signatures, and the server
// patches its basis files with the deltas.
package rsync

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/balena-os/librsync-go"
)

// Signature block parameters, matching the rdiff defaults: 2 KiB
// blocks with 32-byte BLAKE2 strong sums.
const (
	blockLen  = 2048
	strongLen = 32
)

// Signature computes the serialized librsync signature of the file at
// path. An empty basis is represented by os.DevNull and yields a valid
// signature with no blocks.
func Signature(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rsync: signature: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := librsync.Signature(bufio.NewReader(file), &buf, blockLen, strongLen, librsync.BLAKE2_SIG_MAGIC); err != nil {
		return nil, fmt.Errorf("rsync: signature of %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// Delta computes the delta that turns the basis described by signature
// into the current content of the file at path.
func Delta(signature []byte, path string) ([]byte, error) {
	sig, err := librsync.ReadSignature(bytes.NewReader(signature))
	if err != nil {
		return nil, fmt.Errorf("rsync: read signature: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rsync: delta: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if err := librsync.Delta(sig, bufio.NewReader(file), &buf); err != nil {
		return nil, fmt.Errorf("rsync: delta of %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// Patch applies delta to the basis file at basePath and writes the
// reconstructed content to out.
func Patch(basePath string, delta []byte, out io.Writer) error {
	base, err := os.Open(basePath)
	if err != nil {
		return fmt.Errorf("rsync: open basis: %w", err)
	}
	defer base.Close()

	if err := librsync.Patch(base, bytes.NewReader(delta), out); err != nil {
		return fmt.Errorf("rsync: patch against %s: %w", basePath, err)
	}
	return nil
}

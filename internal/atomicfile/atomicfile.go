// Package atomicfile implements the tempfile+fsync+rename write contract
// required by the Manifest Model, Checkpoint Store, and Inference Cache
// (spec.md §4.B-D, §5 "Transaction discipline"): under power loss, the most
// recent atomic write either fully survives or is absent, never torn.
//
// Backed by github.com/google/renameio/v2, grounded on ManuGH-xg2g which
// uses it for the same durability contract in a media-indexing daemon.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFile atomically replaces path's contents with data: write to a
// sibling temp file in the same directory, fsync, then rename. A reader
// racing this write sees either the old file or the fully-written new one.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, perm)
}

// PendingFile exposes the lower-level pending-file API for callers that
// need to stream writes (e.g. a binary cache payload) rather than hand over
// a single []byte.
func PendingFile(path string) (*renameio.PendingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return renameio.NewPendingFile(path)
}

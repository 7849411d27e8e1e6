// Package storage collects a project's Markdown documents from its source:
// a local directory or a GitHub repository tarball.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// File is one collected document.
type File struct {
	Hash string
	Data []byte
}

// Collection maps slash-separated paths, relative to the project's document
// root, to their contents. Errors counts files that could not be read.
type Collection struct {
	Files  map[string]File
	Errors int
}

// Collector gathers every Markdown document of one project.
type Collector interface {
	Collect(ctx context.Context) (*Collection, error)
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func newCollection() *Collection {
	return &Collection{Files: make(map[string]File)}
}

func (c *Collection) add(path string, data []byte) {
	c.Files[path] = File{Hash: Checksum(data), Data: data}
}

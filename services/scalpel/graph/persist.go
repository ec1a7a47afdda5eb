// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Sentinel errors for graph persistence.
var (
	// ErrArtifactNotFound is returned when the artifact path does not
	// exist on disk.
	ErrArtifactNotFound = errors.New("graph artifact not found")

	// ErrArtifactCorrupt is returned when the artifact exists but
	// cannot be decoded.
	ErrArtifactCorrupt = errors.New("graph artifact corrupt")
)

// artifactMagic distinguishes a graph artifact from an arbitrary file
// handed to Load by mistake.
var artifactMagic = []byte("SCG1")

// snapshot is the serialized form of a graph: the node list in
// insertion order plus every edge.
type snapshot struct {
	Nodes []Node
	Edges []Edge
}

// Save writes the graph to a single zstd-compressed binary artifact.
//
// The write goes through a temp file and rename so a crash mid-save
// never leaves a truncated artifact under the final name.
func (g *Graph) Save(path string) error {
	snap := snapshot{}
	g.store.EachNode(func(n *Node) bool {
		snap.Nodes = append(snap.Nodes, *n)
		return true
	})
	g.store.EachNode(func(n *Node) bool {
		snap.Edges = append(snap.Edges, g.store.Successors(n.ID)...)
		return true
	})

	var buf bytes.Buffer
	buf.Write(artifactMagic)

	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0640); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename artifact: %w", err)
	}

	g.log.Info("graph saved", "path", path, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return nil
}

// Load reads an artifact written by Save into a fresh graph.
//
// A missing file yields ErrArtifactNotFound; anything unreadable past
// that point yields ErrArtifactCorrupt. Both support errors.Is.
func Load(path string, opts ...Option) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	if len(data) < len(artifactMagic) || !bytes.Equal(data[:len(artifactMagic)], artifactMagic) {
		return nil, fmt.Errorf("%w: bad magic header in %s", ErrArtifactCorrupt, path)
	}

	dec, err := zstd.NewReader(bytes.NewReader(data[len(artifactMagic):]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	defer dec.Close()

	var snap snapshot
	if err := gob.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}

	g := New(opts...)
	for i := range snap.Nodes {
		node := snap.Nodes[i]
		g.store.UpsertNode(&node)
	}
	for _, e := range snap.Edges {
		g.store.UpsertEdge(e.From, e.To, e.Type)
	}

	g.log.Info("graph loaded", "path", path, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return g, nil
}

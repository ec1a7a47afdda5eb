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

// Store is the minimal node/edge container the graph logic is written
// against.
//
// # Description
//
// The domain logic (ID derivation, ingestion, query algorithms) only
// needs upsert, removal, and neighbor access, so any graph-capable
// container can back it. The default implementation is an adjacency
// map; iteration follows insertion order so queries are deterministic.
//
// Mutation never fails: upserting an existing node merges, upserting
// an existing edge is a no-op, removing an unknown node is a no-op.
type Store interface {
	// UpsertNode inserts n, or merges its attributes into the node
	// already stored under n.ID. Returns the stored node.
	UpsertNode(n *Node) *Node

	// Node returns the node with the given ID.
	Node(id string) (*Node, bool)

	// RemoveNode deletes the node and every edge touching it.
	RemoveNode(id string)

	// UpsertEdge adds a typed edge. It reports false (and stores
	// nothing) if either endpoint is missing or the edge exists.
	UpsertEdge(from, to string, t EdgeType) bool

	// Successors returns the outgoing edges of id, in insertion order.
	Successors(id string) []Edge

	// Predecessors returns the incoming edges of id, in insertion order.
	Predecessors(id string) []Edge

	// EachNode calls fn for every node in insertion order, stopping
	// early if fn returns false.
	EachNode(fn func(*Node) bool)

	// NodeCount and EdgeCount return total element counts.
	NodeCount() int
	EdgeCount() int
}

type edgeKey struct {
	from, to string
	typ      EdgeType
}

// mapStore is the default adjacency-map Store.
type mapStore struct {
	nodes map[string]*Node
	order []string

	out   map[string][]Edge
	in    map[string][]Edge
	edges map[edgeKey]struct{}
}

// NewMapStore creates an empty adjacency-map store.
func NewMapStore() Store {
	return &mapStore{
		nodes: make(map[string]*Node),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
		edges: make(map[edgeKey]struct{}),
	}
}

func (s *mapStore) UpsertNode(n *Node) *Node {
	if existing, ok := s.nodes[n.ID]; ok {
		existing.merge(n)
		return existing
	}
	stored := *n
	s.nodes[n.ID] = &stored
	s.order = append(s.order, n.ID)
	return s.nodes[n.ID]
}

func (s *mapStore) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *mapStore) RemoveNode(id string) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)

	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	// Drop edges in both directions, fixing up the counterpart lists.
	for _, e := range s.out[id] {
		delete(s.edges, edgeKey{e.From, e.To, e.Type})
		s.in[e.To] = removeEdge(s.in[e.To], e)
	}
	for _, e := range s.in[id] {
		delete(s.edges, edgeKey{e.From, e.To, e.Type})
		s.out[e.From] = removeEdge(s.out[e.From], e)
	}
	delete(s.out, id)
	delete(s.in, id)
}

func (s *mapStore) UpsertEdge(from, to string, t EdgeType) bool {
	if _, ok := s.nodes[from]; !ok {
		return false
	}
	if _, ok := s.nodes[to]; !ok {
		return false
	}
	key := edgeKey{from, to, t}
	if _, ok := s.edges[key]; ok {
		return false
	}
	s.edges[key] = struct{}{}
	e := Edge{From: from, To: to, Type: t}
	s.out[from] = append(s.out[from], e)
	s.in[to] = append(s.in[to], e)
	return true
}

func (s *mapStore) Successors(id string) []Edge {
	return s.out[id]
}

func (s *mapStore) Predecessors(id string) []Edge {
	return s.in[id]
}

func (s *mapStore) EachNode(fn func(*Node) bool) {
	for _, id := range s.order {
		if n, ok := s.nodes[id]; ok {
			if !fn(n) {
				return
			}
		}
	}
}

func (s *mapStore) NodeCount() int { return len(s.nodes) }

func (s *mapStore) EdgeCount() int { return len(s.edges) }

func removeEdge(edges []Edge, target Edge) []Edge {
	for i, e := range edges {
		if e == target {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

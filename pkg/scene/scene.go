// Package scene provides the in-memory scene graph that collision shapes
// are built from. Trees are produced from decoded NIF files and are
// read-only once built.
package scene

import (
	"fmt"

	"github.com/Faultbox/collider/pkg/math"
)

// Kind is the closed set of node variants.
type Kind uint8

const (
	KindNode          Kind = iota // Grouping node
	KindTriShape                  // Triangle mesh leaf
	KindCollisionRoot             // Subtree is authored collision geometry
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "Node"
	case KindTriShape:
		return "TriShape"
	case KindCollisionRoot:
		return "CollisionRoot"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Flags is the node behavior bitmask.
type Flags uint16

const (
	FlagHidden      Flags = 0x01  // Not displayed
	FlagMeshCollide Flags = 0x02  // Use mesh for collision
	FlagBoxCollide  Flags = 0x04  // Use bounding box for collision
	FlagNoCollide   Flags = 0x800 // Internal: suppress collision for the subtree
)

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Bounds is a node's bounding volume.
type Bounds struct {
	Center      [3]float32
	Rotation    [9]float32 // Row-major
	HalfExtents [3]float32
}

// ExtraData is a typed value attached to a node.
type ExtraData struct {
	Record string // Record type it was decoded from
	Value  string
}

// TriMeshData is raw leaf geometry.
type TriMeshData struct {
	Vertices  []float32 // 3 floats per vertex
	Triangles []uint16  // 3 indices per triangle
}

// NumVertices returns the vertex count.
func (d *TriMeshData) NumVertices() int {
	return len(d.Vertices) / 3
}

// NumTriangles returns the triangle count.
func (d *TriMeshData) NumTriangles() int {
	return len(d.Triangles) / 3
}

// Node is a scene graph node.
type Node struct {
	Name      string
	Kind      Kind
	Flags     Flags
	Transform math.Transform
	Bounds    *Bounds      // nil without a bounding volume
	Children  []*Node      // nil entries are empty slots
	Extra     []ExtraData  // In file order
	Mesh      *TriMeshData // Only for KindTriShape
}

// HasExtra reports whether the node carries a string with exactly value.
func (n *Node) HasExtra(value string) bool {
	for _, e := range n.Extra {
		if e.Value == value {
			return true
		}
	}
	return false
}

// Walk calls fn for n and every reachable descendant in depth-first
// order. Returning false from fn skips that node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		if child != nil {
			child.walk(fn, depth+1)
		}
	}
}

// Stats summarizes a tree.
type Stats struct {
	Nodes     int
	Leaves    int
	Markers   int
	Triangles int
	Vertices  int
}

// CountStats walks the tree and tallies node kinds and geometry.
func (n *Node) CountStats() Stats {
	var s Stats
	n.Walk(func(node *Node, _ int) bool {
		s.Nodes++
		switch node.Kind {
		case KindTriShape:
			s.Leaves++
			if node.Mesh != nil {
				s.Triangles += node.Mesh.NumTriangles()
				s.Vertices += node.Mesh.NumVertices()
			}
		case KindCollisionRoot:
			s.Markers++
		}
		return true
	})
	return s
}

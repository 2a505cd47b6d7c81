package physics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MeshInterface exposes indexed triangle geometry to acceleration
// structures.
type MeshInterface interface {
	NumTriangles() int
	Triangle(i int) [3]mgl32.Vec3
}

// TriangleMesh accumulates world-space triangles. Vertices are not welded;
// each AddTriangle appends three vertices.
type TriangleMesh struct {
	vertices []mgl32.Vec3
	indices  []uint32
	bounds   AABB
}

// NewTriangleMesh creates an empty mesh.
func NewTriangleMesh() *TriangleMesh {
	return &TriangleMesh{bounds: EmptyAABB()}
}

// AddTriangle appends one triangle.
func (m *TriangleMesh) AddTriangle(a, b, c mgl32.Vec3) {
	base := uint32(len(m.vertices))
	m.vertices = append(m.vertices, a, b, c)
	m.indices = append(m.indices, base, base+1, base+2)
	m.bounds = m.bounds.Extend(a).Extend(b).Extend(c)
}

// NumTriangles returns the triangle count.
func (m *TriangleMesh) NumTriangles() int {
	return len(m.indices) / 3
}

// Triangle returns the three corners of triangle i.
func (m *TriangleMesh) Triangle(i int) [3]mgl32.Vec3 {
	return [3]mgl32.Vec3{
		m.vertices[m.indices[i*3]],
		m.vertices[m.indices[i*3+1]],
		m.vertices[m.indices[i*3+2]],
	}
}

// Vertices returns the vertex buffer. Callers must not modify it.
func (m *TriangleMesh) Vertices() []mgl32.Vec3 {
	return m.vertices
}

// Indices returns the index buffer, three per triangle. Callers must not
// modify it.
func (m *TriangleMesh) Indices() []uint32 {
	return m.indices
}

// Bounds returns the box enclosing every vertex; empty for an empty mesh.
func (m *TriangleMesh) Bounds() AABB {
	return m.bounds
}

// Reset drops all triangles.
func (m *TriangleMesh) Reset() {
	m.vertices = m.vertices[:0]
	m.indices = m.indices[:0]
	m.bounds = EmptyAABB()
}

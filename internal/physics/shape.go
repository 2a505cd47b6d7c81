package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ShapeType identifies a collision shape variant.
type ShapeType int

const (
	ShapeBox ShapeType = iota
	ShapeTriangleMesh
)

// String returns a human-readable shape type name.
func (t ShapeType) String() string {
	switch t {
	case ShapeBox:
		return "Box"
	case ShapeTriangleMesh:
		return "TriangleMesh"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Shape is a static collision shape.
type Shape interface {
	Type() ShapeType
	AABB() AABB
	// Close releases everything the shape owns. It is safe to call more
	// than once.
	Close() error
}

// BoxShape is an origin-centered box.
type BoxShape struct {
	halfExtents mgl32.Vec3
}

// NewBoxShape creates a box with the given half extents.
func NewBoxShape(halfExtents mgl32.Vec3) *BoxShape {
	return &BoxShape{halfExtents: halfExtents}
}

// Type returns ShapeBox.
func (b *BoxShape) Type() ShapeType { return ShapeBox }

// HalfExtents returns the half extents as authored.
func (b *BoxShape) HalfExtents() mgl32.Vec3 { return b.halfExtents }

// AABB returns the box bounds.
func (b *BoxShape) AABB() AABB {
	h := mgl32.Vec3{abs(b.halfExtents[0]), abs(b.halfExtents[1]), abs(b.halfExtents[2])}
	return AABB{Min: h.Mul(-1), Max: h}
}

// Close is a no-op; boxes own no buffers.
func (b *BoxShape) Close() error { return nil }

// BvhTriangleMeshShape is a static triangle mesh together with the BVH
// built over it. The shape owns both; Close releases them together.
type BvhTriangleMeshShape struct {
	mesh   *TriangleMesh
	bvh    *QuantizedBVH
	bounds AABB
}

// NewBvhTriangleMeshShape takes ownership of mesh and builds its BVH.
func NewBvhTriangleMeshShape(mesh *TriangleMesh, quantized bool, leafSize int) *BvhTriangleMeshShape {
	return &BvhTriangleMeshShape{
		mesh:   mesh,
		bvh:    BuildBVH(mesh, quantized, leafSize),
		bounds: mesh.Bounds(),
	}
}

// Type returns ShapeTriangleMesh.
func (s *BvhTriangleMeshShape) Type() ShapeType { return ShapeTriangleMesh }

// AABB returns the mesh bounds. It stays valid after Close.
func (s *BvhTriangleMeshShape) AABB() AABB { return s.bounds }

// Mesh returns the owned mesh, or nil after Close.
func (s *BvhTriangleMeshShape) Mesh() *TriangleMesh { return s.mesh }

// BVH returns the owned hierarchy, or nil after Close.
func (s *BvhTriangleMeshShape) BVH() *QuantizedBVH { return s.bvh }

// NumTriangles returns the triangle count, zero after Close.
func (s *BvhTriangleMeshShape) NumTriangles() int {
	if s.mesh == nil {
		return 0
	}
	return s.mesh.NumTriangles()
}

// Close releases the BVH and the mesh.
func (s *BvhTriangleMeshShape) Close() error {
	if s.bvh != nil {
		s.bvh.Release()
		s.bvh = nil
	}
	if s.mesh != nil {
		s.mesh.Reset()
		s.mesh = nil
	}
	return nil
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Package export writes built shapes and scene trees in inspectable forms.
package export

import (
	"errors"
	"io"

	"github.com/Faultbox/collider/internal/physics"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Export errors.
var (
	ErrEmptyShape   = errors.New("shape has no triangles")
	ErrReleased     = errors.New("shape has been released")
	ErrUnknownShape = errors.New("unsupported shape type")
)

// cuboid corner signs and the 12 outward-facing triangles over them.
var (
	boxCorners = [8][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	boxIndices = []uint32{
		0, 2, 1, 0, 3, 2, // -z
		4, 5, 6, 4, 6, 7, // +z
		0, 1, 5, 0, 5, 4, // -y
		3, 7, 6, 3, 6, 2, // +y
		0, 4, 7, 0, 7, 3, // -x
		1, 2, 6, 1, 6, 5, // +x
	}
)

// Geometry returns the triangle soup of a shape. Boxes become cuboids.
func Geometry(s physics.Shape) (positions [][3]float32, indices []uint32, err error) {
	switch s := s.(type) {
	case *physics.BoxShape:
		h := s.HalfExtents()
		positions = make([][3]float32, len(boxCorners))
		for i, c := range boxCorners {
			positions[i] = [3]float32{c[0] * h[0], c[1] * h[1], c[2] * h[2]}
		}
		return positions, append([]uint32(nil), boxIndices...), nil

	case *physics.BvhTriangleMeshShape:
		mesh := s.Mesh()
		if mesh == nil {
			return nil, nil, ErrReleased
		}
		if mesh.NumTriangles() == 0 {
			return nil, nil, ErrEmptyShape
		}
		vertices := mesh.Vertices()
		positions = make([][3]float32, len(vertices))
		for i, v := range vertices {
			positions[i] = v
		}
		return positions, mesh.Indices(), nil
	}
	return nil, nil, ErrUnknownShape
}

// NewDocument builds a glTF document with one mesh node named name.
func NewDocument(s physics.Shape, name string) (*gltf.Document, error) {
	positions, indices, err := Geometry(s)
	if err != nil {
		return nil, err
	}

	doc := gltf.NewDocument()
	positionAccessor := modeler.WritePosition(doc, positions)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indicesAccessor),
			Attributes: map[string]uint32{gltf.POSITION: positionAccessor},
			Mode:       gltf.PrimitiveTriangles,
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return doc, nil
}

// WriteGLB writes a shape as a binary glTF file.
func WriteGLB(w io.Writer, s physics.Shape, name string) error {
	doc, err := NewDocument(s, name)
	if err != nil {
		return err
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

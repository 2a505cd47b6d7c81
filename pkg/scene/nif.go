package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/collider/pkg/formats"
	"github.com/Faultbox/collider/pkg/math"
	"github.com/go-gl/mathgl/mgl32"
)

// Tree construction errors.
var (
	ErrNoRecords    = errors.New("found no records in NIF")
	ErrRootNotNode  = errors.New("first record is not a node")
	ErrBadReference = errors.New("bad record reference")
	ErrCycle        = errors.New("node hierarchy contains a cycle")
	ErrSharedRecord = errors.New("node record has more than one parent")
)

// maxExtraChain bounds an extra-data linked list.
const maxExtraChain = 256

// FromNIF builds the tree rooted at record 0. Every node record may have
// at most one parent, so the tree never has more nodes than the file has
// records. Cycles and shared records are rejected.
func FromNIF(nif *formats.NIF) (*Node, error) {
	if nif == nil || len(nif.Records) < 1 {
		return nil, ErrNoRecords
	}

	first := nif.Records[0]
	if first == nil {
		return nil, fmt.Errorf("%w: record 0 is empty", ErrRootNotNode)
	}
	if _, ok := first.(formats.NIFNodeRecord); !ok {
		return nil, fmt.Errorf("%w: got %s", ErrRootNotNode, first.RecordType())
	}

	b := &treeBuilder{
		nif:     nif,
		seen:    make(map[int32]bool),
		onStack: make(map[int32]bool),
	}
	return b.node(0)
}

type treeBuilder struct {
	nif     *formats.NIF
	seen    map[int32]bool
	onStack map[int32]bool
}

func (b *treeBuilder) node(idx int32) (*Node, error) {
	if b.onStack[idx] {
		return nil, fmt.Errorf("%w: record %d", ErrCycle, idx)
	}
	if b.seen[idx] {
		return nil, fmt.Errorf("%w: record %d", ErrSharedRecord, idx)
	}
	b.seen[idx] = true
	b.onStack[idx] = true
	defer delete(b.onStack, idx)

	rec := b.nif.Record(idx)
	nr, ok := rec.(formats.NIFNodeRecord)
	if !ok {
		return nil, fmt.Errorf("%w: record %d is not a node", ErrBadReference, idx)
	}

	base := nr.Base()
	n := &Node{
		Name:  base.Name,
		Flags: Flags(base.Flags),
		Transform: math.Transform{
			Rotation:    math.Mat3FromRowMajor(base.Rotation),
			Translation: mgl32.Vec3(base.Translation),
			Velocity:    mgl32.Vec3(base.Velocity),
			Scale:       base.Scale,
		},
	}
	if base.Bounds != nil {
		n.Bounds = &Bounds{
			Center:      base.Bounds.Center,
			Rotation:    base.Bounds.Rotation,
			HalfExtents: base.Bounds.HalfExtents,
		}
	}

	extra, err := b.extraChain(base.Extra)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", base.Name, err)
	}
	n.Extra = extra

	var children []int32
	switch r := rec.(type) {
	case *formats.NIFNode:
		n.Kind = KindNode
		children = r.Children
	case *formats.NIFCollisionNode:
		n.Kind = KindCollisionRoot
		children = r.Children
	case *formats.NIFTriShape:
		n.Kind = KindTriShape
		mesh, err := b.triMesh(r.Data)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", base.Name, err)
		}
		n.Mesh = mesh
	default:
		return nil, fmt.Errorf("%w: record %d has unsupported node type %s", ErrBadReference, idx, rec.RecordType())
	}

	if len(children) > 0 {
		n.Children = make([]*Node, len(children))
		for i, ref := range children {
			if ref == formats.NoRef {
				continue
			}
			child, err := b.node(ref)
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}
	}

	return n, nil
}

func (b *treeBuilder) extraChain(ref int32) ([]ExtraData, error) {
	var extra []ExtraData
	for ref != formats.NoRef {
		if len(extra) >= maxExtraChain {
			return nil, fmt.Errorf("%w: extra data chain longer than %d", ErrBadReference, maxExtraChain)
		}
		e, ok := b.nif.Record(ref).(*formats.NIFStringExtra)
		if !ok {
			return nil, fmt.Errorf("%w: record %d is not extra data", ErrBadReference, ref)
		}
		extra = append(extra, ExtraData{Record: e.RecordType(), Value: e.Value})
		ref = e.Next
	}
	return extra, nil
}

func (b *treeBuilder) triMesh(ref int32) (*TriMeshData, error) {
	if ref == formats.NoRef {
		return &TriMeshData{}, nil
	}
	d, ok := b.nif.Record(ref).(*formats.NIFTriShapeData)
	if !ok {
		return nil, fmt.Errorf("%w: record %d is not tri-shape data", ErrBadReference, ref)
	}

	mesh := &TriMeshData{
		Vertices:  make([]float32, 0, len(d.Vertices)*3),
		Triangles: make([]uint16, 0, len(d.Triangles)*3),
	}
	for _, v := range d.Vertices {
		mesh.Vertices = append(mesh.Vertices, v[0], v[1], v[2])
	}
	for _, t := range d.Triangles {
		mesh.Triangles = append(mesh.Triangles, t[0], t[1], t[2])
	}
	return mesh, nil
}

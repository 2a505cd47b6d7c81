package scene

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Faultbox/collider/pkg/formats"
	"github.com/go-gl/mathgl/mgl32"
)

var identityRot = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func node(name string, extra int32, children ...int32) *formats.NIFNode {
	return &formats.NIFNode{
		NIFNodeBase: formats.NIFNodeBase{Name: name, Extra: extra, Rotation: identityRot, Scale: 1},
		Children:    children,
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNode, "Node"},
		{KindTriShape, "TriShape"},
		{KindCollisionRoot, "CollisionRoot"},
		{Kind(42), "Unknown(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlags_Has(t *testing.T) {
	f := FlagHidden | FlagMeshCollide
	if !f.Has(FlagHidden) || !f.Has(FlagMeshCollide) {
		t.Errorf("%#x should have hidden and mesh-collide", f)
	}
	if f.Has(FlagBoxCollide) || f.Has(FlagNoCollide) {
		t.Errorf("%#x should not have box-collide or no-collide", f)
	}
}

func TestFromNIF_Errors(t *testing.T) {
	tests := []struct {
		name    string
		nif     *formats.NIF
		wantErr error
	}{
		{
			name:    "no records",
			nif:     &formats.NIF{},
			wantErr: ErrNoRecords,
		},
		{
			name: "root is extra data",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				&formats.NIFStringExtra{Next: formats.NoRef, Value: "MRK"},
			}},
			wantErr: ErrRootNotNode,
		},
		{
			name: "child out of range",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 9),
			}},
			wantErr: ErrBadReference,
		},
		{
			name: "child is not a node",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 1),
				&formats.NIFTriShapeData{},
			}},
			wantErr: ErrBadReference,
		},
		{
			name: "extra is not extra data",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", 1),
				node("other", formats.NoRef),
			}},
			wantErr: ErrBadReference,
		},
		{
			name: "leaf data is a node",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				&formats.NIFTriShape{
					NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Scale: 1},
					Data:        0,
				},
			}},
			wantErr: ErrBadReference,
		},
		{
			name: "self cycle",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 0),
			}},
			wantErr: ErrCycle,
		},
		{
			name: "indirect cycle",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 1),
				node("a", formats.NoRef, 2),
				node("b", formats.NoRef, 1),
			}},
			wantErr: ErrCycle,
		},
		{
			name: "child listed twice",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 1, 1),
				node("twice", formats.NoRef),
			}},
			wantErr: ErrSharedRecord,
		},
		{
			name: "child with two parents",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", formats.NoRef, 1, 2),
				node("a", formats.NoRef, 3),
				node("b", formats.NoRef, 3),
				node("common", formats.NoRef),
			}},
			wantErr: ErrSharedRecord,
		},
		{
			name:    "nil file",
			nif:     nil,
			wantErr: ErrNoRecords,
		},
		{
			name:    "nil first record",
			nif:     &formats.NIF{Records: []formats.NIFRecord{nil}},
			wantErr: ErrRootNotNode,
		},
		{
			name: "extra chain loops",
			nif: &formats.NIF{Records: []formats.NIFRecord{
				node("root", 1),
				&formats.NIFStringExtra{Next: 1, Value: "x"},
			}},
			wantErr: ErrBadReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNIF(tt.nif)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromNIF_Tree(t *testing.T) {
	nif := &formats.NIF{Records: []formats.NIFRecord{
		&formats.NIFNode{
			NIFNodeBase: formats.NIFNodeBase{
				Name:        "root",
				Extra:       formats.NoRef,
				Flags:       0x01,
				Translation: [3]float32{1, 2, 3},
				Rotation:    [9]float32{0, -1, 0, 1, 0, 0, 0, 0, 1},
				Velocity:    [3]float32{0, 0, 9},
				Scale:       2,
				Bounds:      &formats.NIFBounds{HalfExtents: [3]float32{4, 5, 6}},
			},
			Children: []int32{1, formats.NoRef, 2},
		},
		&formats.NIFCollisionNode{NIFNode: *node("collision", formats.NoRef, 3)},
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "visible", Extra: 5, Rotation: identityRot, Scale: 1},
			Data:        4,
		},
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "hull", Extra: formats.NoRef, Rotation: identityRot, Scale: 1},
			Data:        4,
		},
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
			Triangles: [][3]uint16{{0, 1, 2}, {0, 2, 3}},
		},
		&formats.NIFStringExtra{Next: 6, Value: "first"},
		&formats.NIFStringExtra{Next: formats.NoRef, Value: "MRK"},
	}}

	root, err := FromNIF(nif)
	if err != nil {
		t.Fatalf("FromNIF failed: %v", err)
	}

	if root.Kind != KindNode || root.Name != "root" {
		t.Errorf("root = %s %q, want Node \"root\"", root.Kind, root.Name)
	}
	if root.Flags != FlagHidden {
		t.Errorf("root.Flags = %#x, want %#x", root.Flags, FlagHidden)
	}
	if root.Transform.Translation != (mgl32.Vec3{1, 2, 3}) || root.Transform.Scale != 2 {
		t.Errorf("root transform = %v scale %v", root.Transform.Translation, root.Transform.Scale)
	}
	if root.Transform.Velocity != (mgl32.Vec3{0, 0, 9}) {
		t.Errorf("root velocity = %v", root.Transform.Velocity)
	}
	// Row-major {0,-1,0, 1,0,0, 0,0,1} rotates X onto Y.
	if got := root.Transform.Rotation.Mul3x1(mgl32.Vec3{1, 0, 0}); got != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("rotation maps X to %v, want [0 1 0]", got)
	}
	if root.Bounds == nil || root.Bounds.HalfExtents != [3]float32{4, 5, 6} {
		t.Errorf("root.Bounds = %+v", root.Bounds)
	}

	if len(root.Children) != 3 {
		t.Fatalf("root has %d child slots, want 3", len(root.Children))
	}
	if root.Children[1] != nil {
		t.Error("empty slot should stay nil")
	}

	collision := root.Children[0]
	if collision.Kind != KindCollisionRoot || len(collision.Children) != 1 {
		t.Fatalf("collision = %s with %d children", collision.Kind, len(collision.Children))
	}

	visible := root.Children[2]
	if visible.Kind != KindTriShape {
		t.Fatalf("visible.Kind = %s, want TriShape", visible.Kind)
	}
	if len(visible.Extra) != 2 || visible.Extra[0].Value != "first" || visible.Extra[1].Value != "MRK" {
		t.Errorf("visible.Extra = %+v", visible.Extra)
	}
	if visible.Extra[1].Record != formats.RecordStringExtra {
		t.Errorf("Extra record = %q", visible.Extra[1].Record)
	}
	if !visible.HasExtra("MRK") || visible.HasExtra("mrk") {
		t.Error("HasExtra must match exactly")
	}
	if visible.Mesh.NumVertices() != 4 || visible.Mesh.NumTriangles() != 2 {
		t.Errorf("mesh = %d vertices, %d triangles", visible.Mesh.NumVertices(), visible.Mesh.NumTriangles())
	}
	if want := []uint16{0, 1, 2, 0, 2, 3}; len(visible.Mesh.Triangles) != 6 || visible.Mesh.Triangles[5] != want[5] {
		t.Errorf("Triangles = %v, want %v", visible.Mesh.Triangles, want)
	}

	stats := root.CountStats()
	want := Stats{Nodes: 4, Leaves: 2, Markers: 1, Triangles: 4, Vertices: 8}
	if stats != want {
		t.Errorf("CountStats() = %+v, want %+v", stats, want)
	}
}

func TestFromNIF_DoublingChainFailsFast(t *testing.T) {
	// Each node lists the next one twice. Expanded as a tree this would be
	// 2^depth leaves.
	const depth = 40
	records := make([]formats.NIFRecord, 0, depth+2)
	for i := int32(0); i < depth; i++ {
		records = append(records, node("level", formats.NoRef, i+1, i+1))
	}
	records = append(records,
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Rotation: identityRot, Scale: 1},
			Data:        depth + 1,
		},
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Triangles: [][3]uint16{{0, 1, 2}},
		},
	)

	var buf bytes.Buffer
	if err := (&formats.NIF{Records: records}).Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	nif, err := formats.ParseNIF(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseNIF failed: %v", err)
	}

	if _, err := FromNIF(nif); !errors.Is(err, ErrSharedRecord) {
		t.Errorf("got error %v, want %v", err, ErrSharedRecord)
	}
}

func TestFromNIF_SharedTriShapeData(t *testing.T) {
	// Leaves may reuse one geometry record; only node records are unique.
	leaf := func(name string) *formats.NIFTriShape {
		return &formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: name, Extra: formats.NoRef, Rotation: identityRot, Scale: 1},
			Data:        3,
		}
	}
	nif := &formats.NIF{Records: []formats.NIFRecord{
		node("root", formats.NoRef, 1, 2),
		leaf("a"),
		leaf("b"),
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Triangles: [][3]uint16{{0, 1, 2}},
		},
	}}

	root, err := FromNIF(nif)
	if err != nil {
		t.Fatalf("FromNIF failed: %v", err)
	}
	if got := root.CountStats().Triangles; got != 2 {
		t.Errorf("got %d triangles, want 2", got)
	}
}

func TestFromNIF_LeafWithoutData(t *testing.T) {
	nif := &formats.NIF{Records: []formats.NIFRecord{
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Rotation: identityRot, Scale: 1},
			Data:        formats.NoRef,
		},
	}}

	root, err := FromNIF(nif)
	if err != nil {
		t.Fatalf("FromNIF failed: %v", err)
	}
	if root.Mesh == nil || root.Mesh.NumTriangles() != 0 {
		t.Errorf("leaf without data should have an empty mesh, got %+v", root.Mesh)
	}
}

func TestNode_WalkSkipsSubtree(t *testing.T) {
	leaf := &Node{Name: "leaf", Kind: KindTriShape}
	inner := &Node{Name: "inner", Children: []*Node{leaf}}
	root := &Node{Name: "root", Children: []*Node{inner, nil}}

	var seen []string
	root.Walk(func(n *Node, depth int) bool {
		seen = append(seen, n.Name)
		return n.Name != "inner"
	})

	if len(seen) != 2 || seen[0] != "root" || seen[1] != "inner" {
		t.Errorf("visited %v, want [root inner]", seen)
	}
}

// Package shape builds static collision shapes from scene graphs.
//
// A build walks the tree twice at most. The first pass honors "NCO" and
// "MRK" markers and, if the tree contains a collision root, only takes
// geometry from under it. If that pass yields nothing, a second pass
// ignores markers and collision roots so that a mesh still exists for ray
// picking.
package shape

import (
	"errors"
	"fmt"

	"github.com/Faultbox/collider/internal/physics"
	"github.com/Faultbox/collider/pkg/formats"
	"github.com/Faultbox/collider/pkg/math"
	"github.com/Faultbox/collider/pkg/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Extra data markers recognized on nodes. Matching is exact.
const (
	MarkerNoCollision = "NCO" // Node and subtree never collide
	MarkerEditorOnly  = "MRK" // Editor-only marker object
)

// Builder errors.
var (
	ErrNilRoot     = errors.New("nil scene root")
	ErrInvalidMesh = errors.New("invalid mesh data")
	ErrSharedNode  = errors.New("node reached through more than one parent")
)

// Options control shape finalization.
type Options struct {
	QuantizedBVH bool // Store BVH node bounds as 16-bit integers
	LeafSize     int  // Triangles per BVH leaf; <= 0 selects the default
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		QuantizedBVH: true,
		LeafSize:     physics.DefaultLeafSize,
	}
}

// Result is a finished collision shape.
type Result struct {
	Shape physics.Shape
	// Collide is false when only the raycast pass produced geometry; the
	// mesh is then meant for picking, not physics.
	Collide   bool
	Triangles int
}

// Close releases the shape.
func (r *Result) Close() error {
	if r.Shape == nil {
		return nil
	}
	return r.Shape.Close()
}

// Builder converts scene trees into shapes. A Builder holds no per-build
// state and may be used from several goroutines.
type Builder struct {
	log  *zap.Logger
	opts Options
}

// NewBuilder creates a builder. A nil logger disables logging.
func NewBuilder(log *zap.Logger, opts Options) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log, opts: opts}
}

// Build runs the collision pass and, if it found no collidable geometry,
// the raycast pass, then finalizes the result. The tree is not modified.
// A node reachable along two paths fails the build with ErrSharedNode, so
// the work done never exceeds the number of nodes.
func (b *Builder) Build(root *scene.Node) (*Result, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	w := &walker{
		log:       b.log,
		mesh:      physics.NewTriangleMesh(),
		visited:   make(map[*scene.Node]bool),
		hasMarker: HasCollisionMarker(root),
	}

	if err := w.walk(root, 0, nil, false); err != nil {
		return nil, err
	}
	collide := w.collide

	if !collide {
		b.log.Debug("no collidable geometry, building raycast mesh", zap.String("root", root.Name))
		w.mesh.Reset()
		clear(w.visited)
		w.raycastOnly = true
		if err := w.walk(root, 0, nil, false); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Shape:   Finalize(w.mesh, w.box, b.opts),
		Collide: collide,
	}
	if m, ok := res.Shape.(*physics.BvhTriangleMeshShape); ok {
		res.Triangles = m.NumTriangles()
	}

	b.log.Debug("built collision shape",
		zap.String("root", root.Name),
		zap.Stringer("type", res.Shape.Type()),
		zap.Int("triangles", res.Triangles),
		zap.Bool("collide", res.Collide),
		zap.Bool("marker", w.hasMarker))

	return res, nil
}

// walker carries the state of one build across both passes.
type walker struct {
	log         *zap.Logger
	mesh        *physics.TriangleMesh
	box         *mgl32.Vec3 // First bounding volume found
	visited     map[*scene.Node]bool
	collide     bool        // A leaf contributed triangles
	hasMarker   bool        // Tree contains a collision root
	raycastOnly bool
}

func (w *walker) walk(node *scene.Node, flags scene.Flags, parent *math.Transform, inMarker bool) error {
	if w.visited[node] {
		return fmt.Errorf("%w: %q", ErrSharedNode, node.Name)
	}
	w.visited[node] = true

	flags |= node.Flags

	if !w.raycastOnly {
		for _, e := range node.Extra {
			if e.Record != formats.RecordStringExtra {
				continue
			}
			switch e.Value {
			case MarkerNoCollision:
				w.log.Debug("skipping no-collision subtree", zap.String("node", node.Name))
				return nil
			case MarkerEditorOnly:
				w.log.Debug("skipping editor marker", zap.String("node", node.Name))
				return nil
			}
		}
	}

	own := node.Transform
	if parent != nil {
		own = parent.Compose(own)
	}

	// Bounds are taken raw: no center offset and no accumulated transform.
	if node.Bounds != nil && w.box == nil {
		half := mgl32.Vec3(node.Bounds.HalfExtents)
		w.box = &half
	}

	switch node.Kind {
	case scene.KindNode:
		return w.children(node, flags, &own, inMarker)
	case scene.KindCollisionRoot:
		return w.children(node, flags, &own, true)
	case scene.KindTriShape:
		// The raycast mesh is for picking and takes every leaf.
		if inMarker || !w.hasMarker || w.raycastOnly {
			return w.triShape(node, flags, own)
		}
	}
	return nil
}

func (w *walker) children(node *scene.Node, flags scene.Flags, own *math.Transform, inMarker bool) error {
	for _, child := range node.Children {
		if child == nil {
			continue
		}
		if err := w.walk(child, flags, own, inMarker); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) triShape(node *scene.Node, flags scene.Flags, own math.Transform) error {
	if !w.raycastOnly {
		if flags.Has(scene.FlagNoCollide) {
			return nil
		}
		// Hidden and flagged for neither kind of collision: unused.
		if flags&(scene.FlagMeshCollide|scene.FlagBoxCollide) == 0 && flags.Has(scene.FlagHidden) {
			return nil
		}
	}

	data := node.Mesh
	if data == nil || len(data.Triangles) == 0 {
		return nil
	}
	if err := validateMesh(node.Name, data); err != nil {
		return err
	}

	vertex := func(i uint16) mgl32.Vec3 {
		v := data.Vertices[int(i)*3 : int(i)*3+3]
		return own.Apply(mgl32.Vec3{v[0], v[1], v[2]})
	}
	for i := 0; i < len(data.Triangles); i += 3 {
		w.mesh.AddTriangle(
			vertex(data.Triangles[i]),
			vertex(data.Triangles[i+1]),
			vertex(data.Triangles[i+2]),
		)
	}
	w.collide = true
	return nil
}

func validateMesh(name string, data *scene.TriMeshData) error {
	if len(data.Vertices)%3 != 0 {
		return fmt.Errorf("%w: node %q has %d vertex floats, not a multiple of 3", ErrInvalidMesh, name, len(data.Vertices))
	}
	if len(data.Triangles)%3 != 0 {
		return fmt.Errorf("%w: node %q has %d indices, not a multiple of 3", ErrInvalidMesh, name, len(data.Triangles))
	}
	numVertices := data.NumVertices()
	for i, idx := range data.Triangles {
		if int(idx) >= numVertices {
			return fmt.Errorf("%w: node %q triangle %d references vertex %d of %d", ErrInvalidMesh, name, i/3, idx, numVertices)
		}
	}
	return nil
}

package shape

import (
	"github.com/Faultbox/collider/internal/physics"
	"github.com/go-gl/mathgl/mgl32"
)

// Finalize turns the accumulated geometry into a shape. A box candidate
// always wins; the mesh is then discarded. Otherwise the mesh is handed to
// a BVH mesh shape, which owns it from here on.
func Finalize(mesh *physics.TriangleMesh, box *mgl32.Vec3, opts Options) physics.Shape {
	if box != nil {
		mesh.Reset()
		return physics.NewBoxShape(*box)
	}
	return physics.NewBvhTriangleMeshShape(mesh, opts.QuantizedBVH, opts.LeafSize)
}

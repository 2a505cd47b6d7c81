package physics

import (
	gomath "math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLeafSize is the maximum number of triangles per BVH leaf.
const DefaultLeafSize = 4

const (
	maxBVHDepth  = 64
	quantizedMax = 0xFFFF
	// Margin added around the mesh before quantizing so that rounding
	// never clips geometry on the outer faces.
	quantizeMargin = 1e-3
)

// bvhNode is one entry of the flattened tree. Nodes are stored in
// depth-first order; an internal node's subtree occupies the next
// escape-1 slots, so skipping a subtree is a jump of escape.
type bvhNode struct {
	qmin, qmax [3]uint16 // Quantized bounds (quantized trees)
	bounds     AABB      // Float bounds (unquantized trees)
	escape     int32     // Subtree size; 1 for leaves
	first      int32     // Leaves: offset into triangles
	count      int32     // Leaves: triangle count
}

// QuantizedBVH is a bounding volume hierarchy over a triangle mesh. When
// quantized, node bounds are stored as 16-bit integers relative to the
// mesh bounds and rounded outward so they stay conservative.
type QuantizedBVH struct {
	nodes     []bvhNode
	triangles []int32 // Triangle indices, permuted so leaves are contiguous
	quantized bool
	origin    mgl32.Vec3 // Quantization frame minimum
	scale     mgl32.Vec3 // Units per world unit, per axis
	bounds    AABB
}

// NodeInfo describes a node during Walk.
type NodeInfo struct {
	Bounds    AABB
	Leaf      bool
	Triangles []int32 // Leaf triangles; nil for internal nodes
}

// BuildBVH builds a hierarchy over mesh. leafSize <= 0 selects
// DefaultLeafSize.
func BuildBVH(mesh MeshInterface, quantized bool, leafSize int) *QuantizedBVH {
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}

	n := mesh.NumTriangles()
	bvh := &QuantizedBVH{
		quantized: quantized,
		triangles: make([]int32, n),
		bounds:    EmptyAABB(),
	}

	triBounds := make([]AABB, n)
	centroids := make([]mgl32.Vec3, n)
	for i := 0; i < n; i++ {
		triBounds[i] = TriangleAABB(mesh.Triangle(i))
		centroids[i] = triBounds[i].Center()
		bvh.triangles[i] = int32(i)
		bvh.bounds = bvh.bounds.Union(triBounds[i])
	}
	if n == 0 {
		return bvh
	}

	if quantized {
		bvh.setQuantization(bvh.bounds)
	}

	b := &bvhBuilder{bvh: bvh, triBounds: triBounds, centroids: centroids, leafSize: leafSize}
	bvh.nodes = make([]bvhNode, 0, 2*n/leafSize+1)
	b.build(0, n, 0)
	return bvh
}

type bvhBuilder struct {
	bvh       *QuantizedBVH
	triBounds []AABB
	centroids []mgl32.Vec3
	leafSize  int
}

// build appends the subtree for triangles[start:end] and returns its size.
func (b *bvhBuilder) build(start, end, depth int) int32 {
	tris := b.bvh.triangles[start:end]

	bounds := EmptyAABB()
	centroidBounds := EmptyAABB()
	for _, t := range tris {
		bounds = bounds.Union(b.triBounds[t])
		centroidBounds = centroidBounds.Extend(b.centroids[t])
	}

	idx := len(b.bvh.nodes)
	b.bvh.nodes = append(b.bvh.nodes, bvhNode{})
	b.bvh.setNodeBounds(idx, bounds)

	if len(tris) <= b.leafSize || depth >= maxBVHDepth {
		b.bvh.nodes[idx].escape = 1
		b.bvh.nodes[idx].first = int32(start)
		b.bvh.nodes[idx].count = int32(len(tris))
		return 1
	}

	// Split at the median centroid along the longest centroid axis.
	axis := centroidBounds.LongestAxis()
	sort.Slice(tris, func(i, j int) bool {
		return b.centroids[tris[i]][axis] < b.centroids[tris[j]][axis]
	})
	mid := start + len(tris)/2

	size := int32(1)
	size += b.build(start, mid, depth+1)
	size += b.build(mid, end, depth+1)
	b.bvh.nodes[idx].escape = size
	return size
}

func (bvh *QuantizedBVH) setQuantization(bounds AABB) {
	margin := mgl32.Vec3{quantizeMargin, quantizeMargin, quantizeMargin}
	bvh.origin = bounds.Min.Sub(margin)
	extent := bounds.Max.Add(margin).Sub(bvh.origin)
	for i := 0; i < 3; i++ {
		bvh.scale[i] = float32(quantizedMax-1) / extent[i]
	}
}

func (bvh *QuantizedBVH) setNodeBounds(idx int, bounds AABB) {
	n := &bvh.nodes[idx]
	if !bvh.quantized {
		n.bounds = bounds
		return
	}
	for i := 0; i < 3; i++ {
		n.qmin[i] = bvh.quantize(bounds.Min[i], i, gomath.Floor)
		n.qmax[i] = bvh.quantize(bounds.Max[i], i, gomath.Ceil)
	}
}

func (bvh *QuantizedBVH) quantize(v float32, axis int, round func(float64) float64) uint16 {
	q := round(float64((v - bvh.origin[axis]) * bvh.scale[axis]))
	if q < 0 {
		return 0
	}
	if q > quantizedMax {
		return quantizedMax
	}
	return uint16(q)
}

func (bvh *QuantizedBVH) nodeBounds(n *bvhNode) AABB {
	if !bvh.quantized {
		return n.bounds
	}
	var b AABB
	for i := 0; i < 3; i++ {
		b.Min[i] = float32(n.qmin[i])/bvh.scale[i] + bvh.origin[i]
		b.Max[i] = float32(n.qmax[i])/bvh.scale[i] + bvh.origin[i]
	}
	return b
}

// IsQuantized reports whether node bounds are stored compressed.
func (bvh *QuantizedBVH) IsQuantized() bool {
	return bvh.quantized
}

// NumNodes returns the number of nodes; zero for an empty or released tree.
func (bvh *QuantizedBVH) NumNodes() int {
	return len(bvh.nodes)
}

// Bounds returns the exact bounds of the indexed geometry.
func (bvh *QuantizedBVH) Bounds() AABB {
	return bvh.bounds
}

// NodeBounds returns the (dequantized) bounds of node i.
func (bvh *QuantizedBVH) NodeBounds(i int) AABB {
	return bvh.nodeBounds(&bvh.nodes[i])
}

// Walk visits nodes in depth-first order without a stack. Returning false
// from fn skips the node's subtree.
func (bvh *QuantizedBVH) Walk(fn func(i int, info NodeInfo) bool) {
	for i := 0; i < len(bvh.nodes); {
		n := &bvh.nodes[i]
		info := NodeInfo{Bounds: bvh.nodeBounds(n), Leaf: n.escape == 1}
		if info.Leaf {
			info.Triangles = bvh.triangles[n.first : n.first+n.count]
		}

		if fn(i, info) || info.Leaf {
			i++
		} else {
			i += int(n.escape)
		}
	}
}

// Release drops the node and triangle arrays.
func (bvh *QuantizedBVH) Release() {
	bvh.nodes = nil
	bvh.triangles = nil
}

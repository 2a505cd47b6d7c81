package shape

import "github.com/Faultbox/collider/pkg/scene"

// HasCollisionMarker reports whether root or any node below it is a
// collision root. Tri-shape leaves cannot hold one and end the search on
// their branch. Each node is inspected once, however many parents it has.
func HasCollisionMarker(root *scene.Node) bool {
	return hasCollisionMarker(root, make(map[*scene.Node]bool))
}

func hasCollisionMarker(n *scene.Node, seen map[*scene.Node]bool) bool {
	if n == nil || seen[n] {
		return false
	}
	seen[n] = true

	switch n.Kind {
	case scene.KindCollisionRoot:
		return true
	case scene.KindTriShape:
		return false
	case scene.KindNode:
		for _, child := range n.Children {
			if hasCollisionMarker(child, seen) {
				return true
			}
		}
	}
	return false
}

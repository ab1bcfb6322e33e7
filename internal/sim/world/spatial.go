package world

import "sort"

// NodeQuery is the spatial capability the gather commands need: candidate
// nodes near a point, and the single best one.
type NodeQuery interface {
	// NearestEligible returns the closest node with CanGather within the
	// Manhattan radius of from, ties broken by smallest node ID, or nil.
	NearestEligible(from Vec3i, radius int) *Node
	// WithinRange returns all gatherable nodes within the radius, sorted by
	// distance then node ID.
	WithinRange(from Vec3i, radius int) []*Node
}

// nodeGrid buckets nodes into square cells on the XZ plane. Nodes are
// removed from the grid on depletion, so every node it yields was gatherable
// when queried.
type nodeGrid struct {
	cell    int
	buckets map[[2]int][]*Node
}

func newNodeGrid(cell int) *nodeGrid {
	if cell <= 0 {
		cell = 16
	}
	return &nodeGrid{cell: cell, buckets: map[[2]int][]*Node{}}
}

func (g *nodeGrid) key(p Vec3i) [2]int {
	return [2]int{floorDiv(p.X, g.cell), floorDiv(p.Z, g.cell)}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func (g *nodeGrid) Insert(n *Node) {
	k := g.key(n.Pos)
	g.buckets[k] = append(g.buckets[k], n)
}

func (g *nodeGrid) Remove(n *Node) {
	k := g.key(n.Pos)
	bucket := g.buckets[k]
	for i, cand := range bucket {
		if cand == n {
			g.buckets[k] = append(bucket[:i], bucket[i+1:]...)
			if len(g.buckets[k]) == 0 {
				delete(g.buckets, k)
			}
			return
		}
	}
}

func (g *nodeGrid) WithinRange(from Vec3i, radius int) []*Node {
	if radius < 0 {
		return nil
	}
	var out []*Node
	minX := floorDiv(from.X-radius, g.cell)
	maxX := floorDiv(from.X+radius, g.cell)
	minZ := floorDiv(from.Z-radius, g.cell)
	maxZ := floorDiv(from.Z+radius, g.cell)
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			for _, n := range g.buckets[[2]int{cx, cz}] {
				if !n.CanGather() {
					continue
				}
				if Manhattan(from, n.Pos) > radius {
					continue
				}
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := Manhattan(from, out[i].Pos), Manhattan(from, out[j].Pos)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (g *nodeGrid) NearestEligible(from Vec3i, radius int) *Node {
	var best *Node
	bestDist := 0
	minX := floorDiv(from.X-radius, g.cell)
	maxX := floorDiv(from.X+radius, g.cell)
	minZ := floorDiv(from.Z-radius, g.cell)
	maxZ := floorDiv(from.Z+radius, g.cell)
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			for _, n := range g.buckets[[2]int{cx, cz}] {
				if !n.CanGather() {
					continue
				}
				d := Manhattan(from, n.Pos)
				if d > radius {
					continue
				}
				if best == nil || d < bestDist || (d == bestDist && n.ID < best.ID) {
					best = n
					bestDist = d
				}
			}
		}
	}
	return best
}

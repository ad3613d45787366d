// Package accel provides the spatial acceleration structure used to answer
// ray intersection queries against large primitive sets: a bounding volume
// hierarchy built with an approximate surface area heuristic and flattened
// into a contiguous node array for cache-friendly traversal.
package accel

import (
	"sort"
	"time"

	"github.com/borealis-render/borealis/log"
	"github.com/borealis-render/borealis/scene"
	"github.com/borealis-render/borealis/types"
)

const (
	// Number of buckets used to approximate the SAH split search.
	numBuckets = 12

	// Upper bound for leaf primitive counts. The serialized count field
	// is 16 bits wide but leaf sizes are capped at a single byte's worth.
	maxLeafSize = 255

	// Half the float32 ulp of 1.0.
	machineEpsilon float32 = 5.9604645e-08
)

// gamma bounds the floating point rounding error accumulated over n
// operations: n*eps / (1 - n*eps).
func gamma(n int) float32 {
	return float32(n) * machineEpsilon / (1 - float32(n)*machineEpsilon)
}

var gamma3 = gamma(3)

var logger = log.New("bvh")

// Per-primitive bounding information collected before partitioning starts.
type primitiveInfo struct {
	index    int
	bounds   scene.AABB
	centroid types.Vec3
}

// A node of the intermediate build tree. Leafs reference a contiguous range
// of the reordered primitive list; interior nodes own exactly two children.
// The tree is discarded once it has been flattened.
type buildNode struct {
	bounds    scene.AABB
	children  [2]*buildNode
	splitAxis int
	firstPrim int
	numPrims  int
}

// Accumulates the primitive count and bounds union for one SAH bucket.
type bucketInfo struct {
	count  int
	bounds scene.AABB
}

// A flattened BVH node. Nodes are laid out in depth-first order: the first
// child of an interior node is the next node in the array while the index of
// the second child is stored in Offset.
type LinearNode struct {
	Bounds scene.AABB

	// Primitive offset for leafs; second child index for interior nodes.
	Offset int32

	// Number of leaf primitives. Zero flags an interior node.
	NumPrims uint16

	// The split axis for interior nodes.
	Axis uint8

	_ uint8
}

// BVH build statistics.
type BuildStats struct {
	// Number of partitioned primitives.
	Primitives int

	// Total node and leaf counts.
	Nodes int
	Leafs int

	// The deepest node level in the tree.
	MaxDepth int

	// Total build time including flattening.
	BuildTime time.Duration
}

// BVH organizes scene primitives in a bounding volume hierarchy stored as a
// contiguous node array. The structure is immutable once built; any number
// of goroutines may run intersection queries against it concurrently. It
// implements scene.Primitive so it composes as an aggregate.
type BVH struct {
	maxPrimsPerLeaf int

	// The input primitives permuted so that each leaf references a
	// contiguous range.
	primitives []scene.Primitive

	// Flattened tree nodes.
	nodes []LinearNode

	stats BuildStats
}

// Construct a BVH from the given primitive list. The maxPrimsPerLeaf param
// controls when the builder stops partitioning and is silently clamped to
// [1, 255]. Construction cannot fail: degenerate geometry degrades into
// leafs and an empty primitive list yields a BVH with zero nodes whose
// queries always report a miss.
func New(primitives []scene.Primitive, maxPrimsPerLeaf int) *BVH {
	if maxPrimsPerLeaf < 1 {
		maxPrimsPerLeaf = 1
	}
	if maxPrimsPerLeaf > maxLeafSize {
		maxPrimsPerLeaf = maxLeafSize
	}

	b := &BVH{
		maxPrimsPerLeaf: maxPrimsPerLeaf,
	}
	if len(primitives) == 0 {
		return b
	}

	start := time.Now()

	info := make([]primitiveInfo, len(primitives))
	for idx, prim := range primitives {
		bounds := prim.WorldBound()
		info[idx] = primitiveInfo{
			index:    idx,
			bounds:   bounds,
			centroid: bounds.Centroid(),
		}
	}

	b.primitives = make([]scene.Primitive, 0, len(primitives))
	root := b.partition(primitives, info, 0, len(info), 0)

	b.nodes = make([]LinearNode, b.stats.Nodes)
	var offset int32
	b.flatten(root, &offset)

	b.stats.Primitives = len(primitives)
	b.stats.BuildTime = time.Since(start)
	logger.Debugf(
		"BVH build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d",
		b.stats.BuildTime.Nanoseconds()/1e6,
		b.stats.MaxDepth, b.stats.Nodes, b.stats.Leafs,
	)
	return b
}

// Get build statistics.
func (b *BVH) Stats() BuildStats {
	return b.stats
}

// Get the flattened node list.
func (b *BVH) Nodes() []LinearNode {
	return b.nodes
}

// Get the reordered primitive list.
func (b *BVH) Primitives() []scene.Primitive {
	return b.primitives
}

// Partition info[start:end] into a subtree, reordering the slice in place.
// Leaf creation appends to the shared reordered primitive list so that every
// leaf covers a contiguous range.
func (b *BVH) partition(prims []scene.Primitive, info []primitiveInfo, start, end, depth int) *buildNode {
	if depth > b.stats.MaxDepth {
		b.stats.MaxDepth = depth
	}
	b.stats.Nodes++

	bounds := scene.NewAABB()
	for i := start; i < end; i++ {
		bounds = bounds.Union(info[i].bounds)
	}

	numPrims := end - start
	if numPrims == 1 {
		return b.createLeaf(prims, info, start, end, bounds)
	}

	// Pick the split axis from the extent of the centroid bounds.
	centroidBounds := scene.NewAABB()
	for i := start; i < end; i++ {
		centroidBounds = centroidBounds.UnionPoint(info[i].centroid)
	}
	axis := centroidBounds.MaxExtent()

	// Coincident centroids cannot be discriminated by any split point;
	// emit a leaf. This also guarantees termination.
	if centroidBounds.Max[axis] == centroidBounds.Min[axis] {
		return b.createLeaf(prims, info, start, end, bounds)
	}

	var mid int
	if numPrims <= 2 {
		// Too few primitives for the SAH to be meaningful; reorder by
		// centroid and split the range at its midpoint.
		mid = (start + end) / 2
		sub := info[start:end]
		sort.Slice(sub, func(i, j int) bool {
			return sub[i].centroid[axis] < sub[j].centroid[axis]
		})
	} else {
		// Bin the primitives into equally sized buckets spanning the
		// centroid bounds along the split axis.
		var buckets [numBuckets]bucketInfo
		for i := range buckets {
			buckets[i].bounds = scene.NewAABB()
		}
		for i := start; i < end; i++ {
			bkt := bucketIndex(centroidBounds, info[i].centroid, axis)
			buckets[bkt].count++
			buckets[bkt].bounds = buckets[bkt].bounds.Union(info[i].bounds)
		}

		// Estimate the SAH cost of splitting after each bucket. The
		// traversal cost is normalized to 1.
		var cost [numBuckets - 1]float32
		for i := 0; i < numBuckets-1; i++ {
			leftBounds, rightBounds := scene.NewAABB(), scene.NewAABB()
			leftCount, rightCount := 0, 0
			for j := 0; j <= i; j++ {
				leftBounds = leftBounds.Union(buckets[j].bounds)
				leftCount += buckets[j].count
			}
			for j := i + 1; j < numBuckets; j++ {
				rightBounds = rightBounds.Union(buckets[j].bounds)
				rightCount += buckets[j].count
			}
			cost[i] = 1 + (float32(leftCount)*leftBounds.SurfaceArea()+
				float32(rightCount)*rightBounds.SurfaceArea())/bounds.SurfaceArea()
		}

		// Select the cheapest split; ties resolve to the first split
		// scanned.
		minCost := cost[0]
		minBucket := 0
		for i := 1; i < numBuckets-1; i++ {
			if cost[i] < minCost {
				minCost = cost[i]
				minBucket = i
			}
		}

		// Splitting must either beat the cost of intersecting every
		// primitive in a single leaf or be forced by the leaf cap.
		leafCost := float32(numPrims)
		if numPrims <= b.maxPrimsPerLeaf && minCost >= leafCost {
			return b.createLeaf(prims, info, start, end, bounds)
		}

		mid = b.split(info, start, end, centroidBounds, axis, minBucket)
	}

	left := b.partition(prims, info, start, mid, depth+1)
	right := b.partition(prims, info, mid, end, depth+1)
	return &buildNode{
		bounds:    bounds,
		children:  [2]*buildNode{left, right},
		splitAxis: axis,
	}
}

// Reorder info[start:end] so that primitives falling into buckets up to and
// including splitBucket come first. Returns the index of the first primitive
// of the right half. The reorder is not stable.
func (b *BVH) split(info []primitiveInfo, start, end int, centroidBounds scene.AABB, axis, splitBucket int) int {
	mid := start
	for i := start; i < end; i++ {
		if bucketIndex(centroidBounds, info[i].centroid, axis) <= splitBucket {
			info[mid], info[i] = info[i], info[mid]
			mid++
		}
	}
	return mid
}

// Map a centroid to its SAH bucket, clamped to [0, numBuckets-1].
func bucketIndex(centroidBounds scene.AABB, centroid types.Vec3, axis int) int {
	bkt := int(numBuckets * centroidBounds.Offset(centroid)[axis])
	if bkt < 0 {
		bkt = 0
	}
	if bkt >= numBuckets {
		bkt = numBuckets - 1
	}
	return bkt
}

// Setup a leaf covering info[start:end] and append its primitives to the
// reordered primitive list, fixing the leaf offset.
func (b *BVH) createLeaf(prims []scene.Primitive, info []primitiveInfo, start, end int, bounds scene.AABB) *buildNode {
	first := len(b.primitives)
	for i := start; i < end; i++ {
		b.primitives = append(b.primitives, prims[info[i].index])
	}
	b.stats.Leafs++
	return &buildNode{
		bounds:    bounds,
		firstPrim: first,
		numPrims:  end - start,
	}
}

// Serialize the build tree into the node array with a depth-first pre-order
// walk. The slot for a node is claimed before recursing so that the first
// child always lands right after its parent; the second child index is
// patched into the parent once the entire first subtree has been emitted.
func (b *BVH) flatten(node *buildNode, offset *int32) int32 {
	idx := *offset
	*offset = idx + 1

	linear := &b.nodes[idx]
	linear.Bounds = node.bounds
	if node.children[0] == nil {
		linear.Offset = int32(node.firstPrim)
		linear.NumPrims = uint16(node.numPrims)
	} else {
		linear.Axis = uint8(node.splitAxis)
		linear.NumPrims = 0
		b.flatten(node.children[0], offset)
		linear.Offset = b.flatten(node.children[1], offset)
	}
	return idx
}

// Get the bounding box enclosing every primitive in the hierarchy. An empty
// BVH reports the empty box sentinel.
func (b *BVH) WorldBound() scene.AABB {
	if len(b.nodes) == 0 {
		return scene.NewAABB()
	}
	return b.nodes[0].Bounds
}

// Aggregates have no material of their own; asking for one is a programming
// error.
func (b *BVH) Material() *scene.Material {
	panic("accel: Material called on an aggregate")
}

// Find the closest primitive intersection along the ray. On a hit the ray
// max parameter is narrowed to the hit distance, isect is populated and the
// method returns true. The traversal stack starts on a fixed size local
// array and spills to the heap only for pathologically deep trees.
func (b *BVH) Intersect(r *scene.Ray, isect *scene.SurfaceInteraction) bool {
	if len(b.nodes) == 0 {
		return false
	}

	invDir := types.Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}
	dirIsNeg := [3]int{0, 0, 0}
	for axis := 0; axis < 3; axis++ {
		if invDir[axis] < 0 {
			dirIsNeg[axis] = 1
		}
	}

	hit := false
	var stackBuf [64]int32
	stack := stackBuf[:0]
	var current int32

	for {
		node := &b.nodes[current]
		if node.intersectBBox(r, invDir, dirIsNeg) {
			if node.NumPrims > 0 {
				// Leaf: test every primitive in its range. Each
				// closer hit narrows r.TMax for the tests that
				// follow.
				for i := int32(0); i < int32(node.NumPrims); i++ {
					if b.primitives[node.Offset+i].Intersect(r, isect) {
						hit = true
					}
				}
				if len(stack) == 0 {
					break
				}
				current = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			} else {
				// Interior: descend into the child nearest to the
				// ray origin first, deferring the far child.
				if dirIsNeg[node.Axis] != 0 {
					stack = append(stack, current+1)
					current = node.Offset
				} else {
					stack = append(stack, node.Offset)
					current++
				}
			}
		} else {
			if len(stack) == 0 {
				break
			}
			current = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return hit
}

// Check whether the ray hits any primitive, stopping at the first hit found.
func (b *BVH) IntersectP(r *scene.Ray) bool {
	if len(b.nodes) == 0 {
		return false
	}

	invDir := types.Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}
	dirIsNeg := [3]int{0, 0, 0}
	for axis := 0; axis < 3; axis++ {
		if invDir[axis] < 0 {
			dirIsNeg[axis] = 1
		}
	}

	var stackBuf [64]int32
	stack := stackBuf[:0]
	var current int32

	for {
		node := &b.nodes[current]
		if node.intersectBBox(r, invDir, dirIsNeg) {
			if node.NumPrims > 0 {
				for i := int32(0); i < int32(node.NumPrims); i++ {
					if b.primitives[node.Offset+i].IntersectP(r) {
						return true
					}
				}
				if len(stack) == 0 {
					break
				}
				current = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			} else {
				if dirIsNeg[node.Axis] != 0 {
					stack = append(stack, current+1)
					current = node.Offset
				} else {
					stack = append(stack, node.Offset)
					current++
				}
			}
		} else {
			if len(stack) == 0 {
				break
			}
			current = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// Division-free slab test against the node bounds using the precomputed
// inverse ray direction. The per-axis exit parameters are inflated by
// 2*gamma(3) so rays grazing a slab boundary are conservatively kept; the
// rare false positive only costs one wasted leaf visit. Zero direction
// components produce infinite inverse components and still test correctly,
// including the NaN arising from 0*inf which fails every comparison.
func (n *LinearNode) intersectBBox(r *scene.Ray, invDir types.Vec3, dirIsNeg [3]int) bool {
	bounds := [2]types.Vec3{n.Bounds.Min, n.Bounds.Max}

	tMin := (bounds[dirIsNeg[0]][0] - r.Origin[0]) * invDir[0]
	tMax := (bounds[1-dirIsNeg[0]][0] - r.Origin[0]) * invDir[0]
	tyMin := (bounds[dirIsNeg[1]][1] - r.Origin[1]) * invDir[1]
	tyMax := (bounds[1-dirIsNeg[1]][1] - r.Origin[1]) * invDir[1]

	tMax *= 1 + 2*gamma3
	tyMax *= 1 + 2*gamma3
	if tMin > tyMax || tyMin > tMax {
		return false
	}
	if tyMin > tMin {
		tMin = tyMin
	}
	if tyMax < tMax {
		tMax = tyMax
	}

	tzMin := (bounds[dirIsNeg[2]][2] - r.Origin[2]) * invDir[2]
	tzMax := (bounds[1-dirIsNeg[2]][2] - r.Origin[2]) * invDir[2]

	tzMax *= 1 + 2*gamma3
	if tMin > tzMax || tzMin > tMax {
		return false
	}
	if tzMin > tMin {
		tMin = tzMin
	}
	if tzMax < tMax {
		tMax = tzMax
	}

	return tMin < r.TMax && tMax > 0
}

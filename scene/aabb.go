package scene

import (
	"math"

	"github.com/borealis-render/borealis/types"
)

// An axis-aligned bounding box defined by its min/max corners. For non-empty
// boxes Min[axis] <= Max[axis] holds on every axis.
type AABB struct {
	Min types.Vec3
	Max types.Vec3
}

// Create an empty AABB. The bounds are inverted so that the first union
// with a point or another box resets them.
func NewAABB() AABB {
	return AABB{
		Min: types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Create an AABB that tightly encloses the two given points.
func NewAABBFromPoints(p1, p2 types.Vec3) AABB {
	return AABB{
		Min: types.MinVec3(p1, p2),
		Max: types.MaxVec3(p1, p2),
	}
}

// Check whether the box is the empty sentinel.
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Calculate the union of two bounding boxes.
func (b AABB) Union(other AABB) AABB {
	return AABB{
		Min: types.MinVec3(b.Min, other.Min),
		Max: types.MaxVec3(b.Max, other.Max),
	}
}

// Expand the box so it encloses the given point.
func (b AABB) UnionPoint(p types.Vec3) AABB {
	return AABB{
		Min: types.MinVec3(b.Min, p),
		Max: types.MaxVec3(b.Max, p),
	}
}

// Get the vector spanning the two box corners.
func (b AABB) Diagonal() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the box midpoint.
func (b AABB) Centroid() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Calculate the total surface area of the box faces. Empty boxes have zero
// area.
func (b AABB) SurfaceArea() float32 {
	if b.Empty() {
		return 0
	}
	d := b.Diagonal()
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[0]*d[2])
}

// Get the axis along which the box extends the most.
func (b AABB) MaxExtent() int {
	return b.Diagonal().MaxDim()
}

// Get the position of a point relative to the box corners with (0,0,0)
// mapping to Min and (1,1,1) mapping to Max. Axes with no extent map to 0.
func (b AABB) Offset(p types.Vec3) types.Vec3 {
	var out types.Vec3
	for axis := 0; axis < 3; axis++ {
		out[axis] = p[axis] - b.Min[axis]
		if b.Max[axis] > b.Min[axis] {
			out[axis] /= b.Max[axis] - b.Min[axis]
		}
	}
	return out
}

// Check whether the point lies inside or on the box boundary.
func (b AABB) Contains(p types.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] || p[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}

package scene

import (
	"math"

	"github.com/borealis-render/borealis/types"
)

// The initial value for the ray max traversal parameter.
var Infinity = float32(math.Inf(1))

// A ray with a mutable max traversal parameter. Intersection queries narrow
// TMax whenever they encounter a closer hit.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3

	TMax float32
}

// Create a new ray with an unbounded max traversal parameter.
func NewRay(origin, dir types.Vec3) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir,
		TMax:   Infinity,
	}
}

// Get the point at parametric distance t along the ray.
func (r Ray) At(t float32) types.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

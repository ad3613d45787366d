package scene

import "github.com/borealis-render/borealis/types"

// Surface data for a ray/primitive intersection. Populated by Primitive
// Intersect implementations whenever a closer hit is found.
type SurfaceInteraction struct {
	// The world-space intersection point.
	Point types.Vec3

	// The shading normal at the intersection point.
	Normal types.Vec3

	// Interpolated uv coordinates.
	UV types.Vec2

	// The primitive that was hit.
	Prim Primitive
}

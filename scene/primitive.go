package scene

import (
	"math"

	"github.com/borealis-render/borealis/types"
)

// The Primitive interface is implemented by every object that scene rays can
// be tested against, including aggregates that group other primitives.
type Primitive interface {
	// Get the world-space bounding box for the primitive.
	WorldBound() AABB

	// Test the ray against the primitive. If a hit closer than r.TMax is
	// found the method narrows r.TMax, populates isect and returns true.
	Intersect(r *Ray, isect *SurfaceInteraction) bool

	// Boolean-only intersection test used for occlusion queries.
	IntersectP(r *Ray) bool

	// Get the material attached to the primitive.
	Material() *Material
}

// A sphere primitive.
type Sphere struct {
	Origin types.Vec3
	Radius float32

	material *Material
}

// Create new sphere primitive.
func NewSphere(origin types.Vec3, radius float32, material *Material) *Sphere {
	return &Sphere{
		Origin:   origin,
		Radius:   radius,
		material: material,
	}
}

func (s *Sphere) WorldBound() AABB {
	r := types.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{
		Min: s.Origin.Sub(r),
		Max: s.Origin.Add(r),
	}
}

func (s *Sphere) Material() *Material {
	return s.material
}

// Solve the ray/sphere quadratic and keep the nearest root inside
// (0, r.TMax).
func (s *Sphere) hit(r *Ray) (float32, bool) {
	oc := r.Origin.Sub(s.Origin)
	a := r.Dir.Dot(r.Dir)
	halfB := oc.Dot(r.Dir)
	c := oc.Dot(oc) - s.Radius*s.Radius

	disc := halfB*halfB - a*c
	if disc < 0 {
		return 0, false
	}

	sqrtDisc := float32(math.Sqrt(float64(disc)))
	t := (-halfB - sqrtDisc) / a
	if t <= 0 {
		t = (-halfB + sqrtDisc) / a
	}
	if t <= 0 || t >= r.TMax {
		return 0, false
	}
	return t, true
}

func (s *Sphere) Intersect(r *Ray, isect *SurfaceInteraction) bool {
	t, ok := s.hit(r)
	if !ok {
		return false
	}

	r.TMax = t
	isect.Point = r.At(t)
	isect.Normal = isect.Point.Sub(s.Origin).Normalize()
	isect.UV = sphereUV(isect.Normal)
	isect.Prim = s
	return true
}

func (s *Sphere) IntersectP(r *Ray) bool {
	_, ok := s.hit(r)
	return ok
}

// Map a unit sphere normal to uv coordinates.
func sphereUV(n types.Vec3) types.Vec2 {
	phi := math.Atan2(float64(n[2]), float64(n[0]))
	theta := math.Asin(float64(n[1]))
	return types.Vec2{
		1 - float32((phi+math.Pi)/(2*math.Pi)),
		float32((theta + math.Pi/2) / math.Pi),
	}
}

// A triangle primitive. Vertices should be specified in counter-clockwise
// order; the geometric normal follows the right-hand rule.
type Triangle struct {
	Vertices [3]types.Vec3
	Normals  [3]types.Vec3
	UV       [3]types.Vec2

	material *Material
}

// Create new triangle primitive. If normals is nil the geometric normal is
// used at every vertex.
func NewTriangle(vertices [3]types.Vec3, normals *[3]types.Vec3, uv [3]types.Vec2, material *Material) *Triangle {
	tri := &Triangle{
		Vertices: vertices,
		UV:       uv,
		material: material,
	}

	if normals != nil {
		tri.Normals = *normals
	} else {
		e1 := vertices[1].Sub(vertices[0])
		e2 := vertices[2].Sub(vertices[0])
		normal := e1.Cross(e2).Normalize()
		tri.Normals = [3]types.Vec3{normal, normal, normal}
	}
	return tri
}

func (tri *Triangle) WorldBound() AABB {
	return NewAABB().
		UnionPoint(tri.Vertices[0]).
		UnionPoint(tri.Vertices[1]).
		UnionPoint(tri.Vertices[2])
}

func (tri *Triangle) Material() *Material {
	return tri.material
}

// Moeller-Trumbore ray/triangle test. Returns the hit distance and the
// barycentric coordinates of the hit point.
func (tri *Triangle) hit(r *Ray) (t, u, v float32, ok bool) {
	e1 := tri.Vertices[1].Sub(tri.Vertices[0])
	e2 := tri.Vertices[2].Sub(tri.Vertices[0])

	pVec := r.Dir.Cross(e2)
	det := e1.Dot(pVec)
	// Near-zero determinant means the ray is parallel to the triangle
	// plane or the triangle is degenerate.
	if det > -1e-9 && det < 1e-9 {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det

	tVec := r.Origin.Sub(tri.Vertices[0])
	u = tVec.Dot(pVec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	qVec := tVec.Cross(e1)
	v = r.Dir.Dot(qVec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(qVec) * invDet
	if t <= 0 || t >= r.TMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

func (tri *Triangle) Intersect(r *Ray, isect *SurfaceInteraction) bool {
	t, u, v, ok := tri.hit(r)
	if !ok {
		return false
	}

	w := 1 - u - v
	r.TMax = t
	isect.Point = r.At(t)
	isect.Normal = tri.Normals[0].Mul(w).
		Add(tri.Normals[1].Mul(u)).
		Add(tri.Normals[2].Mul(v)).
		Normalize()
	isect.UV = types.Vec2{
		tri.UV[0][0]*w + tri.UV[1][0]*u + tri.UV[2][0]*v,
		tri.UV[0][1]*w + tri.UV[1][1]*u + tri.UV[2][1]*v,
	}
	isect.Prim = tri
	return true
}

func (tri *Triangle) IntersectP(r *Ray) bool {
	_, _, _, ok := tri.hit(r)
	return ok
}

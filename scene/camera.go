package scene

import (
	"fmt"
	"math"

	"github.com/borealis-render/borealis/types"
)

// Stores the ray directions at the four corners of the camera frustrum. It is
// used as a shortcut for generating per pixel rays via interpolation of the
// corner rays. Corners are stored in TL, TR, BL, BR order.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3
	Pitch    float32
	Yaw      float32

	Frustrum Frustrum

	// Camera FOV in degrees.
	FOV float32

	// Adjust the frustrum so that Y is inverted
	InvertY bool

	aspect float32
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
		aspect:   1.0,
	}
}

// Setup camera projection for the given frame aspect ratio.
func (c *Camera) SetupProjection(aspect float32) {
	c.aspect = aspect
	c.Update()
}

// Update camera.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	pitchAxis := dir.Cross(c.Up)
	pitchQuat := types.QuatFromAxisAngle(pitchAxis, c.Pitch)
	yawQuat := types.QuatFromAxisAngle(c.Up, c.Yaw)

	orientQuat := pitchQuat.Mul(yawQuat).Normalize()

	// Update direction
	dir = orientQuat.Rotate(dir)
	c.LookAt = c.Position.Add(dir.Mul(1.0))

	c.updateFrustrum()
}

// Generate a ray vector for each corner of the camera frustrum from the
// camera basis vectors and the projection half extents.
func (c *Camera) updateFrustrum() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	right := dir.Cross(c.Up).Normalize()
	up := right.Cross(dir)

	halfH := float32(math.Tan(float64(c.FOV) * math.Pi / 360.0))
	halfW := halfH * c.aspect

	yUp := float32(1.0)
	if c.InvertY {
		yUp = -1.0
	}

	c.Frustrum[0] = dir.Sub(right.Mul(halfW)).Add(up.Mul(halfH * yUp))
	c.Frustrum[1] = dir.Add(right.Mul(halfW)).Add(up.Mul(halfH * yUp))
	c.Frustrum[2] = dir.Sub(right.Mul(halfW)).Sub(up.Mul(halfH * yUp))
	c.Frustrum[3] = dir.Add(right.Mul(halfW)).Sub(up.Mul(halfH * yUp))
}

// Generate a ray for normalized frame coordinates (u, v) in [0, 1] where
// (0, 0) maps to the top-left frustrum corner.
func (c *Camera) GenerateRay(u, v float32) Ray {
	top := c.Frustrum[0].Add(c.Frustrum[1].Sub(c.Frustrum[0]).Mul(u))
	bottom := c.Frustrum[2].Add(c.Frustrum[3].Sub(c.Frustrum[2]).Mul(u))
	dir := top.Add(bottom.Sub(top).Mul(v))

	return NewRay(c.Position, dir)
}

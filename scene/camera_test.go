package scene

import (
	"testing"

	"github.com/borealis-render/borealis/types"
)

func TestCameraFrustrumCorners(t *testing.T) {
	camera := NewCamera(90)
	camera.SetupProjection(1)

	// With a 90 degree FOV and a unit aspect the half extents are 1.
	if !approxEqVec3(camera.Frustrum[0], types.Vec3{-1, 1, -1}, 1e-4) {
		t.Fatalf("unexpected top-left frustrum ray: %v", camera.Frustrum[0])
	}
	if !approxEqVec3(camera.Frustrum[3], types.Vec3{1, -1, -1}, 1e-4) {
		t.Fatalf("unexpected bottom-right frustrum ray: %v", camera.Frustrum[3])
	}
}

func TestCameraAspectScalesFrustrum(t *testing.T) {
	camera := NewCamera(90)
	camera.SetupProjection(2)

	if !approxEqVec3(camera.Frustrum[0], types.Vec3{-2, 1, -1}, 1e-4) {
		t.Fatalf("expected the horizontal extent to scale with the aspect ratio; got %v", camera.Frustrum[0])
	}
}

func TestCameraInvertY(t *testing.T) {
	camera := NewCamera(90)
	camera.InvertY = true
	camera.SetupProjection(1)

	if camera.Frustrum[0][1] >= 0 {
		t.Fatalf("expected the top-left frustrum ray to point down; got %v", camera.Frustrum[0])
	}
}

func TestCameraGenerateRay(t *testing.T) {
	camera := NewCamera(90)
	camera.Position = types.Vec3{0, 2, 5}
	camera.LookAt = types.Vec3{0, 2, 0}
	camera.SetupProjection(1)

	// The frame center maps to the view direction.
	ray := camera.GenerateRay(0.5, 0.5)
	if ray.Origin != camera.Position {
		t.Fatalf("expected ray origin at the camera position; got %v", ray.Origin)
	}
	if !approxEqVec3(ray.Dir.Normalize(), types.Vec3{0, 0, -1}, 1e-4) {
		t.Fatalf("expected the center ray to follow the view direction; got %v", ray.Dir)
	}
	if ray.TMax != Infinity {
		t.Fatalf("expected an unbounded ray; got TMax %f", ray.TMax)
	}

	// (0, 0) maps to the top-left frustrum corner.
	ray = camera.GenerateRay(0, 0)
	if !approxEqVec3(ray.Dir, camera.Frustrum[0], 1e-4) {
		t.Fatalf("expected the corner ray to match the frustrum; got %v", ray.Dir)
	}
}

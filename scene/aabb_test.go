package scene

import (
	"testing"

	"github.com/borealis-render/borealis/types"
)

func TestEmptyAABB(t *testing.T) {
	box := NewAABB()
	if !box.Empty() {
		t.Fatal("expected a freshly created AABB to be empty")
	}
	if sa := box.SurfaceArea(); sa != 0 {
		t.Fatalf("expected zero surface area for an empty box; got %f", sa)
	}

	// The first union must reset the inverted bounds.
	box = box.UnionPoint(types.Vec3{1, 2, 3})
	if box.Empty() {
		t.Fatal("expected box to be non-empty after a point union")
	}
	if box.Min != (types.Vec3{1, 2, 3}) || box.Max != (types.Vec3{1, 2, 3}) {
		t.Fatalf("expected degenerate box at the point; got min %v, max %v", box.Min, box.Max)
	}
}

func TestAABBUnion(t *testing.T) {
	b1 := NewAABBFromPoints(types.Vec3{-1, 0, 0}, types.Vec3{1, 1, 1})
	b2 := NewAABBFromPoints(types.Vec3{0, -2, 0}, types.Vec3{3, 0, 2})

	union := b1.Union(b2)
	if union.Min != (types.Vec3{-1, -2, 0}) {
		t.Fatalf("unexpected union min: %v", union.Min)
	}
	if union.Max != (types.Vec3{3, 1, 2}) {
		t.Fatalf("unexpected union max: %v", union.Max)
	}
	if !union.Contains(b1.Min) || !union.Contains(b2.Max) {
		t.Fatal("expected union to contain the corners of both boxes")
	}
}

func TestAABBMetrics(t *testing.T) {
	box := NewAABBFromPoints(types.Vec3{0, 0, 0}, types.Vec3{2, 4, 6})

	if d := box.Diagonal(); d != (types.Vec3{2, 4, 6}) {
		t.Fatalf("unexpected diagonal: %v", d)
	}
	if c := box.Centroid(); c != (types.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected centroid: %v", c)
	}
	// 2 * (2*4 + 4*6 + 2*6) = 88
	if sa := box.SurfaceArea(); sa != 88 {
		t.Fatalf("unexpected surface area: %f", sa)
	}
	if axis := box.MaxExtent(); axis != 2 {
		t.Fatalf("expected max extent along axis 2; got %d", axis)
	}
}

func TestAABBOffset(t *testing.T) {
	box := NewAABBFromPoints(types.Vec3{0, 0, 1}, types.Vec3{2, 4, 1})

	off := box.Offset(types.Vec3{1, 1, 1})
	if off[0] != 0.5 || off[1] != 0.25 {
		t.Fatalf("unexpected offset: %v", off)
	}
	// The z axis has no extent and must map to 0.
	if off[2] != 0 {
		t.Fatalf("expected degenerate axis offset of 0; got %f", off[2])
	}
}

func TestAABBContains(t *testing.T) {
	box := NewAABBFromPoints(types.Vec3{-1, -1, -1}, types.Vec3{1, 1, 1})

	if !box.Contains(types.Vec3{0, 0, 0}) {
		t.Fatal("expected box to contain its center")
	}
	if !box.Contains(types.Vec3{1, 1, 1}) {
		t.Fatal("expected box to contain its corner")
	}
	if box.Contains(types.Vec3{0, 0, 1.001}) {
		t.Fatal("expected point outside the box to be rejected")
	}
}

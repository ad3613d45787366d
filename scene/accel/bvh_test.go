package accel

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/borealis-render/borealis/scene"
	"github.com/borealis-render/borealis/types"
)

var testMaterial = &scene.Material{Type: scene.DiffuseMaterial, Diffuse: types.Vec3{1, 1, 1}}

// Wraps a primitive and counts how many intersection tests reach it.
type countingPrimitive struct {
	scene.Primitive
	calls *int
}

func (c countingPrimitive) Intersect(r *scene.Ray, isect *scene.SurfaceInteraction) bool {
	*c.calls++
	return c.Primitive.Intersect(r, isect)
}

func (c countingPrimitive) IntersectP(r *scene.Ray) bool {
	*c.calls++
	return c.Primitive.IntersectP(r)
}

func makeRandomSpheres(rng *rand.Rand, count int, extent, maxRadius float32) []scene.Primitive {
	prims := make([]scene.Primitive, count)
	for i := 0; i < count; i++ {
		origin := types.Vec3{
			(rng.Float32()*2 - 1) * extent,
			(rng.Float32()*2 - 1) * extent,
			(rng.Float32()*2 - 1) * extent,
		}
		prims[i] = scene.NewSphere(origin, 0.01+rng.Float32()*maxRadius, testMaterial)
	}
	return prims
}

func makeRandomRay(rng *rand.Rand, extent float32) scene.Ray {
	origin := types.Vec3{
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
	}
	dir := types.Vec3{
		rng.Float32()*2 - 1,
		rng.Float32()*2 - 1,
		rng.Float32()*2 - 1,
	}.Normalize()
	if dir.Len() == 0 {
		dir = types.Vec3{1, 0, 0}
	}
	return scene.NewRay(origin, dir)
}

func bruteForceClosest(prims []scene.Primitive, r scene.Ray) (float32, bool) {
	var isect scene.SurfaceInteraction
	hit := false
	for _, prim := range prims {
		if prim.Intersect(&r, &isect) {
			hit = true
		}
	}
	return r.TMax, hit
}

func TestWorldBoundEqualsPrimitiveUnion(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	prims := makeRandomSpheres(rng, 200, 50, 2)

	expBounds := scene.NewAABB()
	for _, prim := range prims {
		expBounds = expBounds.Union(prim.WorldBound())
	}

	bvh := New(prims, 4)
	got := bvh.WorldBound()
	for axis := 0; axis < 3; axis++ {
		if got.Min[axis] != expBounds.Min[axis] || got.Max[axis] != expBounds.Max[axis] {
			t.Fatalf("expected world bound %v - %v; got %v - %v", expBounds.Min, expBounds.Max, got.Min, got.Max)
		}
	}
}

func TestReorderedPrimitivesArePermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	prims := makeRandomSpheres(rng, 500, 100, 1)

	bvh := New(prims, 4)
	reordered := bvh.Primitives()
	if len(reordered) != len(prims) {
		t.Fatalf("expected %d reordered primitives; got %d", len(prims), len(reordered))
	}

	seen := make(map[scene.Primitive]int, len(prims))
	for _, prim := range reordered {
		seen[prim]++
	}
	for idx, prim := range prims {
		if seen[prim] != 1 {
			t.Fatalf("expected primitive %d to appear exactly once in the reordered list; appeared %d times", idx, seen[prim])
		}
	}
}

func TestLeafPrimitiveCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	prims := makeRandomSpheres(rng, 1000, 100, 1)

	maxPrims := 4
	bvh := New(prims, maxPrims)

	total := 0
	for idx, node := range bvh.Nodes() {
		if node.NumPrims == 0 {
			continue
		}
		if int(node.NumPrims) > maxPrims {
			t.Fatalf("leaf %d holds %d primitives; cap is %d", idx, node.NumPrims, maxPrims)
		}
		total += int(node.NumPrims)
	}
	if total != len(prims) {
		t.Fatalf("expected leafs to reference %d primitives; got %d", len(prims), total)
	}
}

func TestLeafCapClamp(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	prims := makeRandomSpheres(rng, 2000, 100, 1)

	// A cap beyond the serialized field width must be clamped to 255.
	bvh := New(prims, 100000)
	for idx, node := range bvh.Nodes() {
		if node.NumPrims > 255 {
			t.Fatalf("leaf %d holds %d primitives; serialized cap is 255", idx, node.NumPrims)
		}
	}
}

func TestClosestHitMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	prims := makeRandomSpheres(rng, 300, 20, 2)
	bvh := New(prims, 4)

	const relEps = 1e-3
	for i := 0; i < 1000; i++ {
		ray := makeRandomRay(rng, 30)

		expT, expHit := bruteForceClosest(prims, ray)

		bvhRay := ray
		var isect scene.SurfaceInteraction
		gotHit := bvh.Intersect(&bvhRay, &isect)

		if gotHit != expHit {
			t.Fatalf("ray %d: expected hit=%t; got hit=%t", i, expHit, gotHit)
		}
		if !expHit {
			continue
		}
		if diff := float64(bvhRay.TMax - expT); math.Abs(diff) > float64(relEps)*math.Max(1, float64(expT)) {
			t.Fatalf("ray %d: expected closest hit at t=%f; got t=%f", i, expT, bvhRay.TMax)
		}
		if isect.Prim == nil {
			t.Fatalf("ray %d: hit reported but interaction primitive not set", i)
		}
	}
}

func TestAnyHitMatchesClosestHit(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	prims := makeRandomSpheres(rng, 300, 20, 2)
	bvh := New(prims, 4)

	for i := 0; i < 1000; i++ {
		ray := makeRandomRay(rng, 30)

		closestRay := ray
		var isect scene.SurfaceInteraction
		expHit := bvh.Intersect(&closestRay, &isect)

		anyRay := ray
		if gotHit := bvh.IntersectP(&anyRay); gotHit != expHit {
			t.Fatalf("ray %d: closest-hit reports %t but any-hit reports %t", i, expHit, gotHit)
		}
	}
}

func TestEmptyPrimitiveSet(t *testing.T) {
	bvh := New(nil, 4)

	if count := len(bvh.Nodes()); count != 0 {
		t.Fatalf("expected zero nodes for an empty primitive set; got %d", count)
	}
	if !bvh.WorldBound().Empty() {
		t.Fatal("expected the empty bound sentinel for an empty primitive set")
	}

	ray := scene.NewRay(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0})
	var isect scene.SurfaceInteraction
	if bvh.Intersect(&ray, &isect) {
		t.Fatal("expected closest-hit to report a miss on an empty BVH")
	}
	if bvh.IntersectP(&ray) {
		t.Fatal("expected any-hit to report a miss on an empty BVH")
	}
}

func TestAxisAlignedRays(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prims := makeRandomSpheres(rng, 200, 10, 1)
	bvh := New(prims, 4)

	dirs := []types.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}

	for i := 0; i < 300; i++ {
		for _, dir := range dirs {
			ray := scene.NewRay(types.Vec3{
				(rng.Float32()*2 - 1) * 12,
				(rng.Float32()*2 - 1) * 12,
				(rng.Float32()*2 - 1) * 12,
			}, dir)

			expT, expHit := bruteForceClosest(prims, ray)

			bvhRay := ray
			var isect scene.SurfaceInteraction
			gotHit := bvh.Intersect(&bvhRay, &isect)
			if gotHit != expHit {
				t.Fatalf("dir %v: expected hit=%t; got hit=%t", dir, expHit, gotHit)
			}
			if expHit && math.Abs(float64(bvhRay.TMax-expT)) > 1e-3 {
				t.Fatalf("dir %v: expected closest hit at t=%f; got t=%f", dir, expT, bvhRay.TMax)
			}
		}
	}
}

func TestCoincidentCentroidsForceLeaf(t *testing.T) {
	// Concentric spheres share a centroid but have different bounds. No
	// split point can discriminate them so the builder must emit a single
	// leaf even though the count exceeds the cap.
	origin := types.Vec3{1, 2, 3}
	prims := []scene.Primitive{
		scene.NewSphere(origin, 1, testMaterial),
		scene.NewSphere(origin, 2, testMaterial),
		scene.NewSphere(origin, 3, testMaterial),
	}

	bvh := New(prims, 1)
	nodes := bvh.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected a single-leaf tree; got %d nodes", len(nodes))
	}
	if nodes[0].NumPrims != 3 {
		t.Fatalf("expected root leaf to hold 3 primitives; got %d", nodes[0].NumPrims)
	}
	if stats := bvh.Stats(); stats.Leafs != 1 || stats.MaxDepth != 0 {
		t.Fatalf("expected stats to report 1 leaf at depth 0; got %+v", stats)
	}
}

func TestSinglePrimitive(t *testing.T) {
	prims := []scene.Primitive{
		scene.NewSphere(types.Vec3{0, 0, 0}, 1, testMaterial),
	}

	bvh := New(prims, 4)
	nodes := bvh.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected a single node; got %d", len(nodes))
	}
	if nodes[0].NumPrims != 1 || nodes[0].Offset != 0 {
		t.Fatalf("expected root leaf with offset 0 and count 1; got offset %d count %d", nodes[0].Offset, nodes[0].NumPrims)
	}
}

func TestTwoPrimitiveLayout(t *testing.T) {
	prims := []scene.Primitive{
		scene.NewSphere(types.Vec3{-5, 0, 0}, 1, testMaterial),
		scene.NewSphere(types.Vec3{5, 0, 0}, 1, testMaterial),
	}

	bvh := New(prims, 1)
	nodes := bvh.Nodes()
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes for a two-leaf tree; got %d", len(nodes))
	}
	root := nodes[0]
	if root.NumPrims != 0 {
		t.Fatalf("expected interior root; got leaf with %d primitives", root.NumPrims)
	}
	if root.Axis != 0 {
		t.Fatalf("expected split along the x axis; got axis %d", root.Axis)
	}
	// The first child is always array-adjacent; the second child index is
	// stored on the parent.
	if root.Offset != 2 {
		t.Fatalf("expected second child at index 2; got %d", root.Offset)
	}
	if nodes[1].NumPrims != 1 || nodes[2].NumPrims != 1 {
		t.Fatalf("expected two single-primitive leafs; got counts %d and %d", nodes[1].NumPrims, nodes[2].NumPrims)
	}
}

func TestFlattenedLayoutInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	prims := makeRandomSpheres(rng, 700, 60, 1)
	bvh := New(prims, 4)

	nodes := bvh.Nodes()
	for idx, node := range nodes {
		if node.NumPrims > 0 {
			if int(node.Offset)+int(node.NumPrims) > len(prims) {
				t.Fatalf("leaf %d primitive range [%d, %d) escapes the primitive list", idx, node.Offset, int(node.Offset)+int(node.NumPrims))
			}
			continue
		}
		if int(node.Offset) <= idx+1 || int(node.Offset) >= len(nodes) {
			t.Fatalf("interior node %d stores second child index %d outside (%d, %d)", idx, node.Offset, idx+1, len(nodes))
		}
		if node.Axis > 2 {
			t.Fatalf("interior node %d stores invalid split axis %d", idx, node.Axis)
		}
	}
}

func TestLargeSceneTraversalIsSubLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	const primCount = 10000
	calls := 0
	prims := make([]scene.Primitive, primCount)
	for i, prim := range makeRandomSpheres(rng, primCount, 500, 1) {
		prims[i] = countingPrimitive{Primitive: prim, calls: &calls}
	}

	maxPrims := 4
	bvh := New(prims, maxPrims)
	for idx, node := range bvh.Nodes() {
		if node.NumPrims > 0 && int(node.NumPrims) > maxPrims {
			t.Fatalf("leaf %d holds %d primitives; cap is %d", idx, node.NumPrims, maxPrims)
		}
	}

	const rayCount = 200
	for i := 0; i < rayCount; i++ {
		ray := makeRandomRay(rng, 500)
		var isect scene.SurfaceInteraction
		bvh.Intersect(&ray, &isect)
	}

	avgTests := float64(calls) / float64(rayCount)
	if avgTests > float64(primCount)/10 {
		t.Fatalf("expected sub-linear traversal cost; averaged %.1f primitive tests per ray over %d primitives", avgTests, primCount)
	}
}

func TestConcurrentQueries(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	prims := makeRandomSpheres(rng, 400, 25, 2)
	bvh := New(prims, 4)

	type refResult struct {
		ray scene.Ray
		t   float32
		hit bool
	}
	refs := make([]refResult, 500)
	for i := range refs {
		ray := makeRandomRay(rng, 30)
		expT, expHit := bruteForceClosest(prims, ray)
		refs[i] = refResult{ray: ray, t: expT, hit: expHit}
	}

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, ref := range refs {
				ray := ref.ray
				var isect scene.SurfaceInteraction
				hit := bvh.Intersect(&ray, &isect)
				if hit != ref.hit {
					t.Errorf("ray %d: expected hit=%t; got hit=%t", i, ref.hit, hit)
					return
				}
				if hit && math.Abs(float64(ray.TMax-ref.t)) > 1e-3*math.Max(1, float64(ref.t)) {
					t.Errorf("ray %d: expected t=%f; got t=%f", i, ref.t, ray.TMax)
					return
				}

				shadowRay := ref.ray
				if bvh.IntersectP(&shadowRay) != ref.hit {
					t.Errorf("ray %d: any-hit disagrees with closest-hit", i)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestAggregateMaterialPanics(t *testing.T) {
	bvh := New([]scene.Primitive{
		scene.NewSphere(types.Vec3{0, 0, 0}, 1, testMaterial),
	}, 4)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Material on an aggregate to panic")
		}
	}()
	bvh.Material()
}

package renderer

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/borealis-render/borealis/log"
	"github.com/borealis-render/borealis/scene"
	"github.com/borealis-render/borealis/scene/accel"
	"github.com/borealis-render/borealis/types"
)

// Offset applied along the surface normal when spawning secondary rays so
// they do not re-intersect the surface they left.
const shadowBias = 1e-3

type Renderer interface {
	// Render a frame.
	Render() (image.Image, error)

	// Get render statistics for the last frame.
	Stats() FrameStats

	// Get the BVH build statistics for the attached scene.
	BuildStats() accel.BuildStats
}

// The default renderer builds a BVH for the scene and path traces the frame
// on a pool of workers. The frame is split into horizontal blocks whose
// heights are re-balanced between passes based on per worker timings. All
// workers share the immutable BVH and issue queries against it concurrently.
type defaultRenderer struct {
	logger log.Logger

	sc   *scene.Scene
	bvh  *accel.BVH
	opts Options

	scheduler blockScheduler

	sunDir   types.Vec3
	sunColor types.Vec3

	stats FrameStats
}

// Create a renderer with the default block scheduler. The scene BVH is
// built up front so repeated Render calls reuse it.
func NewDefault(sc *scene.Scene, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if sc.Camera == nil {
		return nil, ErrCameraNotDefined
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &defaultRenderer{
		logger:    log.New("renderer"),
		sc:        sc,
		opts:      opts,
		scheduler: newPerfectScheduler(),
	}
	if len(opts.SunDir) == 3 {
		r.sunDir = types.Vec3{opts.SunDir[0], opts.SunDir[1], opts.SunDir[2]}.Normalize()
	}
	if len(opts.SunColor) == 3 {
		r.sunColor = types.Vec3{opts.SunColor[0], opts.SunColor[1], opts.SunColor[2]}
	}

	r.logger.Infof("building BVH for %d primitives", len(sc.Primitives))
	r.bvh = accel.New(sc.Primitives, opts.MaxPrimsPerLeaf)

	sc.Camera.SetupProjection(float32(opts.FrameW) / float32(opts.FrameH))

	return r, nil
}

func (r *defaultRenderer) BuildStats() accel.BuildStats {
	return r.bvh.Stats()
}

func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

// Render a frame. Each sample-per-pixel pass is distributed across the
// worker pool; pass timings feed back into the block scheduler.
func (r *defaultRenderer) Render() (image.Image, error) {
	frameW := r.opts.FrameW
	frameH := r.opts.FrameH
	numWorkers := r.opts.NumWorkers
	if uint32(numWorkers) > frameH {
		numWorkers = int(frameH)
	}

	accum := make([]types.Vec3, frameW*frameH)
	lastPassTime := make([]time.Duration, numWorkers)

	rngs := make([]*rand.Rand, numWorkers)
	for idx := range rngs {
		rngs[idx] = rand.New(rand.NewSource(int64(idx) + 1))
	}

	frameStart := time.Now()
	var blocks []uint32
	for pass := uint32(0); pass < r.opts.SamplesPerPixel; pass++ {
		blocks = r.scheduler.Schedule(numWorkers, frameH, lastPassTime)

		var wg sync.WaitGroup
		var blockY uint32
		for idx, blockH := range blocks {
			wg.Add(1)
			go func(id int, blockY, blockH uint32) {
				defer wg.Done()
				start := time.Now()
				r.renderBlock(accum, blockY, blockH, rngs[id])
				lastPassTime[id] = time.Since(start)
			}(idx, blockY, blockH)
			blockY += blockH
		}
		wg.Wait()
	}

	r.stats = FrameStats{
		Workers:    make([]WorkerStat, numWorkers),
		RenderTime: time.Since(frameStart),
	}
	for idx, blockH := range blocks {
		r.stats.Workers[idx] = WorkerStat{
			Id:           idx,
			BlockH:       blockH,
			FramePercent: 100 * float32(blockH) / float32(frameH),
			RenderTime:   lastPassTime[idx],
		}
	}

	r.logger.Infof("rendered %dx%d frame with %d spp in %s", frameW, frameH, r.opts.SamplesPerPixel, r.stats.RenderTime)
	return r.tonemap(accum), nil
}

// Trace one sample for every pixel in the assigned block, accumulating into
// the shared buffer. Blocks are disjoint so no synchronization is needed.
func (r *defaultRenderer) renderBlock(accum []types.Vec3, blockY, blockH uint32, rng *rand.Rand) {
	frameW := r.opts.FrameW
	frameH := r.opts.FrameH

	for y := blockY; y < blockY+blockH; y++ {
		for x := uint32(0); x < frameW; x++ {
			u := (float32(x) + rng.Float32()) / float32(frameW)
			v := (float32(y) + rng.Float32()) / float32(frameH)

			ray := r.sc.Camera.GenerateRay(u, v)
			sample := r.trace(ray, rng)

			idx := y*frameW + x
			accum[idx] = accum[idx].Add(sample)
		}
	}
}

// Path trace a single camera ray.
func (r *defaultRenderer) trace(ray scene.Ray, rng *rand.Rand) types.Vec3 {
	var radiance types.Vec3
	throughput := types.Vec3{1, 1, 1}

	for bounce := uint32(0); ; bounce++ {
		var isect scene.SurfaceInteraction
		if !r.bvh.Intersect(&ray, &isect) {
			radiance = radiance.Add(throughput.MulVec(r.sc.BgColor))
			break
		}

		mat := isect.Prim.Material()

		// Shading normal facing the incoming ray.
		normal := isect.Normal
		if normal.Dot(ray.Dir) > 0 {
			normal = normal.Mul(-1)
		}

		if mat.Type == scene.EmissiveMaterial {
			radiance = radiance.Add(throughput.MulVec(mat.Emissive))
			break
		}

		// Direct sun contribution resolved with an any-hit shadow query.
		if r.sunColor.MaxComponent() > 0 && mat.Type == scene.DiffuseMaterial {
			cos := -normal.Dot(r.sunDir)
			if cos > 0 {
				shadowRay := scene.NewRay(isect.Point.Add(normal.Mul(shadowBias)), r.sunDir.Mul(-1))
				if !r.bvh.IntersectP(&shadowRay) {
					radiance = radiance.Add(throughput.MulVec(mat.Diffuse).MulVec(r.sunColor).Mul(cos))
				}
			}
		}

		if bounce >= r.opts.NumBounces {
			break
		}

		// Russian roulette for path elimination.
		if bounce >= r.opts.MinBouncesForRR {
			p := throughput.MaxComponent()
			if p < 1e-3 || rng.Float32() >= p {
				break
			}
			throughput = throughput.Mul(1 / p)
		}

		switch mat.Type {
		case scene.SpecularMaterial:
			dir := reflect(ray.Dir.Normalize(), normal)
			throughput = throughput.MulVec(mat.Diffuse)
			ray = scene.NewRay(isect.Point.Add(normal.Mul(shadowBias)), dir)
		case scene.RefractiveMaterial:
			ray, throughput = r.refractRay(ray, isect, mat, throughput, rng)
		default:
			dir := cosineSampleHemisphere(normal, rng)
			throughput = throughput.MulVec(mat.Diffuse)
			ray = scene.NewRay(isect.Point.Add(normal.Mul(shadowBias)), dir)
		}
	}

	return radiance
}

// Spawn the continuation ray for a refractive surface, choosing between
// reflection and transmission with Schlick's approximation.
func (r *defaultRenderer) refractRay(ray scene.Ray, isect scene.SurfaceInteraction, mat *scene.Material, throughput types.Vec3, rng *rand.Rand) (scene.Ray, types.Vec3) {
	dir := ray.Dir.Normalize()

	ior := mat.IOR
	if ior <= 1 {
		ior = 1.5
	}

	outward := isect.Normal
	eta := 1 / ior
	cosI := -dir.Dot(outward)
	if cosI < 0 {
		// Exiting the medium.
		outward = outward.Mul(-1)
		eta = ior
		cosI = -cosI
	}

	sin2T := eta * eta * (1 - cosI*cosI)
	if sin2T > 1 || rng.Float32() < schlick(cosI, ior) {
		reflDir := reflect(dir, outward)
		return scene.NewRay(isect.Point.Add(outward.Mul(shadowBias)), reflDir), throughput
	}

	cosT := float32(math.Sqrt(float64(1 - sin2T)))
	refrDir := dir.Mul(eta).Add(outward.Mul(eta*cosI - cosT))
	return scene.NewRay(isect.Point.Sub(outward.Mul(shadowBias)), refrDir), throughput
}

// Schlick's reflectance approximation.
func schlick(cos, ior float32) float32 {
	r0 := (1 - ior) / (1 + ior)
	r0 *= r0
	return r0 + (1-r0)*float32(math.Pow(float64(1-cos), 5))
}

// Mirror reflection of d around n.
func reflect(d, n types.Vec3) types.Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// Sample a cosine-weighted direction on the hemisphere around n.
func cosineSampleHemisphere(n types.Vec3, rng *rand.Rand) types.Vec3 {
	// Build an orthonormal basis around n.
	var tangent types.Vec3
	if n[0] > -0.9 && n[0] < 0.9 {
		tangent = types.Vec3{1, 0, 0}.Cross(n).Normalize()
	} else {
		tangent = types.Vec3{0, 1, 0}.Cross(n).Normalize()
	}
	bitangent := n.Cross(tangent)

	phi := 2 * math.Pi * rng.Float64()
	r2 := rng.Float64()
	sinTheta := math.Sqrt(r2)

	x := float32(math.Cos(phi) * sinTheta)
	y := float32(math.Sin(phi) * sinTheta)
	z := float32(math.Sqrt(1 - r2))

	return tangent.Mul(x).Add(bitangent.Mul(y)).Add(n.Mul(z)).Normalize()
}

// Apply exposure and gamma correction to the accumulated samples.
func (r *defaultRenderer) tonemap(accum []types.Vec3) image.Image {
	frameW := int(r.opts.FrameW)
	frameH := int(r.opts.FrameH)
	scale := r.opts.Exposure / float32(r.opts.SamplesPerPixel)

	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			c := accum[y*frameW+x].Mul(scale)
			img.SetRGBA(x, y, color.RGBA{
				R: toSRGB(c[0]),
				G: toSRGB(c[1]),
				B: toSRGB(c[2]),
				A: 255,
			})
		}
	}
	return img
}

// Map a linear color channel to an 8-bit sRGB-ish value using gamma 2.2.
func toSRGB(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(255 * math.Pow(float64(v), 1/2.2))
}

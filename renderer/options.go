package renderer

import (
	"runtime"

	"github.com/BurntSushi/toml"
)

type Options struct {
	// Frame dims.
	FrameW uint32 `toml:"width"`
	FrameH uint32 `toml:"height"`

	// Number of indirect bounces.
	NumBounces uint32 `toml:"num_bounces"`

	// Min bounces before applying russian roulette for path elimination.
	MinBouncesForRR uint32 `toml:"rr_bounces"`

	// Number of samples.
	SamplesPerPixel uint32 `toml:"spp"`

	// Exposure for tonemapping.
	Exposure float32 `toml:"exposure"`

	// Number of render workers. Zero selects one worker per cpu.
	NumWorkers int `toml:"workers"`

	// Max primitives per BVH leaf; clamped to 255 by the builder.
	MaxPrimsPerLeaf int `toml:"max_prims_per_leaf"`

	// Optional directional sun light. A zero direction disables it.
	SunDir   []float32 `toml:"sun_dir"`
	SunColor []float32 `toml:"sun_color"`
}

// Load render options from a toml file.
func LoadOptions(pathToFile string) (Options, error) {
	var opts Options
	_, err := toml.DecodeFile(pathToFile, &opts)
	return opts, err
}

// Fill in defaults for unset fields and validate the rest.
func (o *Options) Validate() error {
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
	if o.MaxPrimsPerLeaf <= 0 {
		o.MaxPrimsPerLeaf = 4
	}
	if o.Exposure == 0 {
		o.Exposure = 1.0
	}
	if o.MinBouncesForRR == 0 || o.MinBouncesForRR >= o.NumBounces {
		// Disable RR for path elimination.
		o.MinBouncesForRR = o.NumBounces + 1
	}

	if o.FrameW == 0 || o.FrameH == 0 {
		return ErrInvalidFrameDims
	}
	if o.SamplesPerPixel == 0 {
		return ErrNoSamples
	}
	return nil
}

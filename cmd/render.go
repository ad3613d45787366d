package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/borealis-render/borealis/renderer"
	"github.com/borealis-render/borealis/scene/reader"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	opts := renderer.Options{
		FrameW:          uint32(ctx.Int("width")),
		FrameH:          uint32(ctx.Int("height")),
		SamplesPerPixel: uint32(ctx.Int("spp")),
		Exposure:        float32(ctx.Float64("exposure")),
		NumBounces:      uint32(ctx.Int("num-bounces")),
		MinBouncesForRR: uint32(ctx.Int("rr-bounces")),
		NumWorkers:      ctx.Int("workers"),
		MaxPrimsPerLeaf: ctx.Int("max-prims-per-leaf"),
	}

	if pathToConfig := ctx.String("config"); pathToConfig != "" {
		fileOpts, err := renderer.LoadOptions(pathToConfig)
		if err != nil {
			return err
		}
		opts = mergeOptions(ctx, opts, fileOpts)
	}

	// Load scene
	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	// Create renderer
	r, err := renderer.NewDefault(sc, opts)
	if err != nil {
		return err
	}

	buildStats := r.BuildStats()
	logger.Infof(
		"built BVH with %d nodes (%d leafs, max depth %d) in %s",
		buildStats.Nodes, buildStats.Leafs, buildStats.MaxDepth, buildStats.BuildTime,
	)

	frame, err := r.Render()
	if err != nil {
		return err
	}

	// Export PNG
	imgFile := ctx.String("out")
	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	if err = png.Encode(f, frame); err != nil {
		return err
	}
	logger.Noticef("wrote frame to %s in %s", imgFile, time.Since(start))

	// Display stats
	displayFrameStats(r.Stats())

	return nil
}

// Merge render options loaded from a config file with the command line
// flags. Flags explicitly set on the command line win over file values;
// settings missing from the file fall back to the flag defaults.
func mergeOptions(ctx *cli.Context, flagOpts, fileOpts renderer.Options) renderer.Options {
	merged := fileOpts

	if ctx.IsSet("width") || merged.FrameW == 0 {
		merged.FrameW = flagOpts.FrameW
	}
	if ctx.IsSet("height") || merged.FrameH == 0 {
		merged.FrameH = flagOpts.FrameH
	}
	if ctx.IsSet("spp") || merged.SamplesPerPixel == 0 {
		merged.SamplesPerPixel = flagOpts.SamplesPerPixel
	}
	if ctx.IsSet("num-bounces") || merged.NumBounces == 0 {
		merged.NumBounces = flagOpts.NumBounces
	}
	if ctx.IsSet("rr-bounces") || merged.MinBouncesForRR == 0 {
		merged.MinBouncesForRR = flagOpts.MinBouncesForRR
	}
	if ctx.IsSet("exposure") || merged.Exposure == 0 {
		merged.Exposure = flagOpts.Exposure
	}
	if ctx.IsSet("workers") || merged.NumWorkers == 0 {
		merged.NumWorkers = flagOpts.NumWorkers
	}
	if ctx.IsSet("max-prims-per-leaf") || merged.MaxPrimsPerLeaf == 0 {
		merged.MaxPrimsPerLeaf = flagOpts.MaxPrimsPerLeaf
	}

	return merged
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Worker", "Block height", "% of frame", "Render time"})
	for _, stat := range stats.Workers {
		table.Append([]string{
			fmt.Sprintf("%d", stat.Id),
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%s", stat.RenderTime),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%s", stats.RenderTime)})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"github.com/borealis-render/borealis/scene/accel"
	"github.com/borealis-render/borealis/scene/reader"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Parse a scene, build its BVH and print build statistics.
func InspectScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	bvh := accel.New(sc.Primitives, ctx.Int("max-prims-per-leaf"))
	stats := bvh.Stats()

	nodeBytes := uint64(len(bvh.Nodes())) * uint64(unsafe.Sizeof(accel.LinearNode{}))
	worldBound := bvh.WorldBound()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Materials", humanize.Comma(int64(len(sc.Materials)))})
	table.Append([]string{"Primitives", humanize.Comma(int64(stats.Primitives))})
	table.Append([]string{"BVH nodes", humanize.Comma(int64(stats.Nodes))})
	table.Append([]string{"BVH leafs", humanize.Comma(int64(stats.Leafs))})
	table.Append([]string{"BVH max depth", fmt.Sprintf("%d", stats.MaxDepth)})
	table.Append([]string{"BVH node array size", humanize.IBytes(nodeBytes)})
	table.Append([]string{"BVH build time", fmt.Sprintf("%s", stats.BuildTime)})
	table.Append([]string{"World bounds min", fmt.Sprintf("(%3.3f, %3.3f, %3.3f)", worldBound.Min[0], worldBound.Min[1], worldBound.Min[2])})
	table.Append([]string{"World bounds max", fmt.Sprintf("(%3.3f, %3.3f, %3.3f)", worldBound.Max[0], worldBound.Max[1], worldBound.Max[2])})
	table.Render()

	logger.Noticef("scene statistics\n%s", buf.String())
	return nil
}

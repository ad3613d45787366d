package main

import (
	"os"

	"github.com/borealis-render/borealis/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "borealis"
	app.Usage = "render scenes using path tracing"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render scene",
			Subcommands: []cli.Command{
				{
					Name:        "frame",
					Usage:       "render single frame",
					Description: `Render a single frame and save it as a png image.`,
					ArgsUsage:   "scene_file.obj",
					Flags: []cli.Flag{
						cli.IntFlag{
							Name:  "width",
							Value: 512,
							Usage: "frame width",
						},
						cli.IntFlag{
							Name:  "height",
							Value: 512,
							Usage: "frame height",
						},
						cli.IntFlag{
							Name:  "spp",
							Value: 16,
							Usage: "samples per pixel",
						},
						cli.IntFlag{
							Name:  "num-bounces",
							Value: 5,
							Usage: "number of indirect ray bounces",
						},
						cli.IntFlag{
							Name:  "rr-bounces",
							Value: 3,
							Usage: "min bounces before applying RR for path elimination",
						},
						cli.Float64Flag{
							Name:  "exposure",
							Value: 1.0,
							Usage: "camera exposure for tone-mapping",
						},
						cli.IntFlag{
							Name:  "workers",
							Value: 0,
							Usage: "number of render workers (0 selects one per cpu)",
						},
						cli.IntFlag{
							Name:  "max-prims-per-leaf",
							Value: 4,
							Usage: "max primitives per BVH leaf (clamped to 255)",
						},
						cli.StringFlag{
							Name:  "config, c",
							Usage: "load render options from a toml file",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
					},
					Action: cmd.RenderFrame,
				},
			},
		},
		{
			Name:        "inspect",
			Usage:       "build the scene BVH and display its statistics",
			Description: `Parse a scene, build its bounding volume hierarchy and print build statistics.`,
			ArgsUsage:   "scene_file.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "max-prims-per-leaf",
					Value: 4,
					Usage: "max primitives per BVH leaf (clamped to 255)",
				},
			},
			Action: cmd.InspectScene,
		},
	}

	app.Run(os.Args)
}

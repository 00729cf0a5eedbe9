package main

import (
	"os"

	"github.com/helios-pt/helios/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "helios"
	app.Usage = "render frames using wavefront path tracing"
	app.Version = "0.0.1"
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

	renderFlags := []cli.Flag{
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
			Value: 4,
			Usage: "number of indirect bounces",
		},
		cli.Float64Flag{
			Name:  "exposure",
			Value: 1.0,
			Usage: "camera exposure for tone-mapping",
		},
		cli.IntFlag{
			Name:  "num-queues",
			Value: 0,
			Usage: "number of concurrent device queues (0 selects a default)",
		},
		cli.IntFlag{
			Name:  "max-path-states",
			Value: 0,
			Usage: "path state capacity per queue (0 selects a default)",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "render",
			Usage: "render frame",
			Subcommands: []cli.Command{
				{
					Name:        "frame",
					Usage:       "render single frame",
					Description: `Render a single frame and save it as a png image.`,
					Flags: append(renderFlags, cli.StringFlag{
						Name:  "out, o",
						Value: "frame.png",
						Usage: "image filename for the rendered frame",
					}),
					Action: cmd.RenderFrame,
				},
				{
					Name:        "interactive",
					Usage:       "render progressively refined view of the frame",
					Description: `Render the frame in an opengl window, refining it one sample per pixel at a time.`,
					Flags:       renderFlags,
					Action:      cmd.RenderInteractive,
				},
			},
		},
	}

	app.Run(os.Args)
}

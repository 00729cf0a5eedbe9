package cmd

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/helios-pt/helios/renderer"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a still frame and save it as a png image.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	opts := rendererOptions(ctx)

	r, err := renderer.NewDefault(opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = r.Render(); err != nil {
		return err
	}

	if err = saveFrame(r, ctx.String("out")); err != nil {
		return err
	}

	displayFrameStats(r.Stats())
	return nil
}

// Render a progressively refined view of the frame in an opengl window.
func RenderInteractive(ctx *cli.Context) error {
	setupLogging(ctx)

	opts := rendererOptions(ctx)

	r, err := renderer.NewInteractive(opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = r.Render(); err != nil {
		return err
	}

	displayFrameStats(r.Stats())
	return nil
}

func rendererOptions(ctx *cli.Context) renderer.Options {
	return renderer.Options{
		FrameW:          ctx.Int("width"),
		FrameH:          ctx.Int("height"),
		SamplesPerPixel: ctx.Int("spp"),
		NumBounces:      ctx.Int("num-bounces"),
		Exposure:        float32(ctx.Float64("exposure")),
		NumQueues:       ctx.Int("num-queues"),
		MaxPathStates:   ctx.Int("max-path-states"),
	}
}

func saveFrame(r renderer.Renderer, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, r.Frame()); err != nil {
		return err
	}

	logger.Noticef("wrote frame to %s", file)
	return nil
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Queue", "Tiles", "Failed tiles", "Render time"})
	for _, stat := range stats.Queues {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.Tiles),
			fmt.Sprintf("%d", stat.FailedTiles),
			fmt.Sprintf("%s", stat.RenderTime),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%s", stats.RenderTime)})

	table.Render()
	logger.Noticef("frame statistics (%d samples/pixel accumulated)\n%s", stats.AccumulatedSamples, buf.String())
}

package cmd

import (
	"bytes"
	"fmt"

	cldev "github.com/helios-pt/helios/tracer/opencl/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available opencl devices.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	clPlatforms, err := cldev.GetPlatformInfo()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nSystem provides %d opencl platform(s):\n\n", len(clPlatforms)))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Platform", "Device", "Type", "Est. speed (GFlops)"})
	for pIdx, platformInfo := range clPlatforms {
		for _, device := range platformInfo.Devices {
			table.Append([]string{
				fmt.Sprintf("%02d: %s (%s)", pIdx, platformInfo.Name, platformInfo.Version),
				device.Name,
				device.Type.String(),
				fmt.Sprintf("%d", device.Speed),
			})
		}
	}
	table.Render()

	logger.Notice(buf.String())
	return nil
}

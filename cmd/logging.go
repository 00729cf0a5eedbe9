package cmd

import (
	"github.com/helios-pt/helios/log"
	"github.com/urfave/cli"
)

var logger = log.New("helios")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

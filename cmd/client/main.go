package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/tubeaccounts/internal/buildinfo"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/cli"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())

}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/kinveysync/internal/buildinfo"
	"github.com/dmitrijs2005/kinveysync/internal/client/cli"
	"github.com/dmitrijs2005/kinveysync/internal/client/client"
	"github.com/dmitrijs2005/kinveysync/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	c, err := client.New(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer c.Close()

	app, err := cli.NewApp(c, os.Stdin, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}

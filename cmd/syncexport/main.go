// Command syncexport publishes every record of one model, or of the whole
// catalog, to the other deployment and advances the last-sync stamps.
//
//	syncexport -c main.json -m base.person
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/osissync/internal/flagx"
	"github.com/dmitrijs2005/osissync/internal/server"
	"github.com/dmitrijs2005/osissync/internal/server/config"
)

func main() {
	var model string
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&model, "m", "", "model to export (all when empty)")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-m"}))

	if err := run(context.Background(), config.LoadConfig(), model); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, model string) error {
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if model != "" {
		n, err := app.Records().Export(ctx, model)
		if err != nil {
			return err
		}
		log.Printf("%s: %d records", model, n)
		return nil
	}

	counts, err := app.Records().ExportAll(ctx)
	for name, n := range counts {
		log.Printf("%s: %d records", name, n)
	}
	return err
}

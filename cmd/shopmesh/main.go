package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "shopmesh",
		Usage: "Run the product, inventory, review and shopping services over a message broker",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve one service, or all of them in one process",
				Flags:  serveFlags(),
				Action: run,
			},
			{
				Name:  "services",
				Usage: "List the services and the routing keys they bind",
				Action: func(c *cli.Context) error {
					for _, name := range serviceNames() {
						fmt.Fprintf(c.App.Writer, "%-10s %s\n", name, services[name].routingKey)
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

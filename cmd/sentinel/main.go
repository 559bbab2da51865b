//
//  Copyright © Manetu Inc. All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/manetu/datasentinel/cmd/sentinel/subcommands/decide"
	"github.com/manetu/datasentinel/cmd/sentinel/subcommands/serve"
	"github.com/manetu/datasentinel/cmd/sentinel/subcommands/trap"
	"github.com/manetu/datasentinel/cmd/sentinel/version"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "sentinel",
		Usage:   "A risk-adaptive access-decision service guarding user data shared with partners",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "users",
				Aliases: []string{"u"},
				Usage:   "Load the user registry from `FILE` instead of the configured users file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Creates a decision-point service",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The TCP port to serve on.  Defaults to server.port from the configuration.",
					},
					&cli.StringFlag{
						Name:    "protocol",
						Aliases: []string{"p"},
						Usage:   "The protocol to serve.  Must be one of 'generic' or 'envoy'",
						Value:   "generic",
						Action: func(ctx context.Context, command *cli.Command, s string) error {
							if s != "generic" && s != "envoy" {
								return fmt.Errorf("unsupported protocol: %s", s)
							}
							return nil
						},
					},
				},
				Action: serve.Execute,
			},
			{
				Name:  "trap",
				Usage: "Works with planted decoy values",
				Commands: []*cli.Command{
					{
						Name:  "inject",
						Usage: "Replaces every match of a trap type in a document with a fresh decoy",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "input",
								Aliases: []string{"i"},
								Usage:   "Load the document from `FILE`, or use '-' for stdin",
							},
							&cli.StringFlag{
								Name:     "type",
								Aliases:  []string{"t"},
								Usage:    "The trap type: one of email, phone, name or id",
								Required: true,
							},
						},
						Action: trap.ExecuteInject,
					},
				},
			},
			{
				Name:  "decide",
				Usage: "Evaluates access requests against an in-process sentinel and prints the responses",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Load a request, or an array of requests, from `FILE`, or use '-' for stdin",
					},
					&cli.BoolFlag{
						Name:  "audit",
						Usage: "Write forensic access records to stderr",
					},
					&cli.BoolFlag{
						Name:  "risk",
						Usage: "Print the risk posture of the last request's partner after all decisions",
					},
				},
				Action: decide.Execute,
			},
			{
				Name:  "version",
				Usage: "Prints the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintln(cmd.Root().Writer, version.GetVersion())
					return err
				},
			},
		},
	}
}

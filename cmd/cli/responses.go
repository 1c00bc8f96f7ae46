package main

import (
	"fmt"

	"github.com/glizzus/readaloud/internal/presenters"
	"github.com/urfave/cli/v2"
)

var responsesCommand = &cli.Command{
	Name:  "responses",
	Usage: "List the latest saved answer to each question for a user",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "user-id",
			Usage:    "user whose answers to list",
			EnvVars:  []string{"READALOUD_USER_ID"},
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		repo, closeRepo, err := newResponseRepository(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer closeRepo()

		responses, err := repo.ListLatest(c.Context, c.String("user-id"))
		if err != nil {
			return cli.Exit("Failed to list responses: "+err.Error(), 1)
		}
		fmt.Print(presenters.ResponseList(responses))
		return nil
	},
}

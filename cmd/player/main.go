package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/mroth/weightedrand/v2"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "player",
		Usage: "play grammar game sessions against a running api",
		Commands: []*cli.Command{
			commandPlay(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandPlay() *cli.Command {
	return &cli.Command{
		Name: "play",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:     "user",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				EnvVars: []string{"PLAYER_PASSWORD"},
				Value:   "grammar-game",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "sessions",
				Value: 1,
			},
		},
		Action: func(c *cli.Context) error {
			backoff := heimdall.NewConstantBackoff(200*time.Millisecond, 100*time.Millisecond)
			client := httpclient.NewClient(
				httpclient.WithHTTPTimeout(5*time.Second),
				httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
				httpclient.WithRetryCount(2),
			)

			chooser, err := weightedrand.NewChooser(
				weightedrand.NewChoice(0, 2),
				weightedrand.NewChoice(5, 5),
				weightedrand.NewChoice(10, 3),
				weightedrand.NewChoice(20, 1),
			)
			if err != nil {
				return err
			}

			p := &player{client: client, baseURL: c.String("base-url")}
			if err := p.authenticate(c.String("user"), c.String("password")); err != nil {
				return err
			}

			for i := 0; i < c.Int("sessions"); i++ {
				session, err := p.play(c.Int("rounds"), chooser.Pick)
				if err != nil {
					return err
				}
				fmt.Printf("session %s completed: score=%d level=%d\n", session.ID, session.Score, session.Level)
			}

			board, err := p.leaderboard("overall")
			if err != nil {
				return err
			}
			if board.Me != nil {
				fmt.Printf("overall rank=%d best=%.0f\n", board.Me.Rank, board.Me.Score)
			}
			return nil
		},
	}
}

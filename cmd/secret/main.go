package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "secret",
		Usage: "bootstrap secrets and environment files",
		Commands: []*cli.Command{
			commandJWT(),
			commandEnv(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandJWT() *cli.Command {
	return &cli.Command{
		Name:  "jwt",
		Usage: "print a random hex secret for JWT_SECRET",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "bytes",
				Value: 32,
				Usage: "secret length in bytes",
			},
		},
		Action: func(c *cli.Context) error {
			secret, err := generateSecret(c.Int("bytes"))
			if err != nil {
				return err
			}
			fmt.Println(secret)
			return nil
		},
	}
}

func commandEnv() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "write a starter .env file with a fresh JWT secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Value: ".env",
				Usage: "output file",
			},
			&cli.StringFlag{
				Name:  "driver",
				Value: "postgres",
				Usage: "store driver: postgres, sqlite, mongo or memory",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			out := c.String("out")
			if _, err := os.Stat(out); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite", out)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			secret, err := generateSecret(32)
			if err != nil {
				return err
			}

			content, err := envTemplate(c.String("driver"), secret)
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return err
			}

			log.Println("Wrote", out)
			return nil
		},
	}
}

func generateSecret(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("secret must be at least 16 bytes, got %d", n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func envTemplate(driver string, secret string) (string, error) {
	var store []string
	switch driver {
	case "postgres":
		store = []string{"DB_DSN=postgres://postgres@localhost:5432/grammar_game?sslmode=disable", "DB_PASSWORD="}
	case "sqlite":
		store = []string{"SQLITE_PATH=file:grammargame.db?_pragma=busy_timeout(5000)"}
	case "mongo":
		store = []string{"MONGO_URI=mongodb://localhost:27017", "MONGO_DATABASE=grammar_game"}
	case "memory":
	default:
		return "", fmt.Errorf("unknown store driver %q", driver)
	}

	lines := []string{
		"API_MODE=debug",
		"API_ORIGINS=http://localhost:3000",
		"JWT_SECRET=" + secret,
		"JWT_TTL=24h",
		"STORE_DRIVER=" + driver,
	}
	lines = append(lines, store...)
	lines = append(lines,
		"REDIS_URL=redis://localhost:6379/0",
		"SCORE_POLICY=monotonic",
		"ARCHIVE_BUCKET=",
	)

	return strings.Join(lines, "\n") + "\n", nil
}

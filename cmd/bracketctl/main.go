package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shuttlecourt/league/internal/config"
	"github.com/shuttlecourt/league/internal/db"
	"github.com/shuttlecourt/league/internal/service"
	"github.com/shuttlecourt/league/internal/store"
	"github.com/urfave/cli/v2"
)

const (
	driverFlag = "db-driver"
	dsnFlag    = "database-url"
	fileFlag   = "file"
	leagueFlag = "league"
)

var build string
var semanticVersion = "v0.1.0-dev" + build

func main() {
	app := &cli.App{
		Name:    "bracketctl",
		Usage:   "Operate badminton league brackets from the command line",
		Version: semanticVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  driverFlag,
				Usage: "Database driver, sqlite3 or postgres. Defaults to DB_DRIVER.",
			},
			&cli.StringFlag{
				Name:  dsnFlag,
				Usage: "Database connection string. Defaults to DATABASE_URL.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply pending database migrations",
				Action: func(cCtx *cli.Context) error {
					database, err := openDB(cCtx)
					if err != nil {
						return err
					}
					defer database.Close()
					if err := db.RunMigrations(database); err != nil {
						return err
					}
					fmt.Fprintln(cCtx.App.Writer, "migrations applied")
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "Create a league and its participants from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     fileFlag,
						Aliases:  []string{"f"},
						Usage:    "Path to the league YAML file",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					database, err := openDB(cCtx)
					if err != nil {
						return err
					}
					defer database.Close()

					f, err := os.Open(cCtx.String(fileFlag))
					if err != nil {
						return fmt.Errorf("failed to open seed file: %w", err)
					}
					defer f.Close()

					leagues := service.NewLeagueService(database, store.NewLeagueStore())
					league, err := seedLeague(cCtx.Context, leagues, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(cCtx.App.Writer, "league %s created (%s)\n", league.ID, league.Status)
					return nil
				},
			},
			{
				Name:  "generate",
				Usage: "Draw the bracket of a league and print it",
				Flags: []cli.Flag{leagueIDFlag()},
				Action: func(cCtx *cli.Context) error {
					return withBrackets(cCtx, func(brackets *service.BracketService, leagueID uuid.UUID) error {
						data, err := brackets.GenerateBracket(cCtx.Context, leagueID)
						if err != nil {
							return err
						}
						return writeBracket(cCtx.App.Writer, data)
					})
				},
			},
			{
				Name:  "show",
				Usage: "Print the current bracket of a league as YAML",
				Flags: []cli.Flag{leagueIDFlag()},
				Action: func(cCtx *cli.Context) error {
					return withBrackets(cCtx, func(brackets *service.BracketService, leagueID uuid.UUID) error {
						data, err := brackets.GetBracket(cCtx.Context, leagueID)
						if err != nil {
							return err
						}
						return writeBracket(cCtx.App.Writer, data)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func leagueIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     leagueFlag,
		Aliases:  []string{"l"},
		Usage:    "League ID",
		Required: true,
	}
}

// openDB resolves the connection from the environment, letting flags override it.
func openDB(cCtx *cli.Context) (*sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	driver, dsn := cfg.DBDriver, cfg.DatabaseURL
	if cCtx.IsSet(driverFlag) {
		driver = cCtx.String(driverFlag)
	}
	if cCtx.IsSet(dsnFlag) {
		dsn = cCtx.String(dsnFlag)
	}
	return db.InitDB(driver, dsn)
}

func withBrackets(cCtx *cli.Context, fn func(*service.BracketService, uuid.UUID) error) error {
	leagueID, err := uuid.Parse(cCtx.String(leagueFlag))
	if err != nil {
		return fmt.Errorf("invalid league id: %w", err)
	}
	database, err := openDB(cCtx)
	if err != nil {
		return err
	}
	defer database.Close()

	brackets := service.NewBracketService(database, store.NewLeagueStore(), store.NewMatchStore(), nil)
	return fn(brackets, leagueID)
}

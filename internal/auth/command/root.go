// Package command defines the authctl administration commands. They work on
// the service's database and token store directly, so they run next to the
// server rather than against its HTTP API.
package command

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/aussiebroadwan/tokenguard/internal/auth/app"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
)

// Version is set via ldflags.
var Version = "dev"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "authctl",
		Usage:   "tokenguard administration tool",
		Version: Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			MigrateCommand(),
			UserCommand(),
			TokensCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "SQLite database file",
			EnvVars: []string{"AUTH_DATABASE_FILE"},
			Value:   "auth.db",
		},
		&cli.StringFlag{
			Name:    "pepper",
			Usage:   "Password pepper file",
			EnvVars: []string{"AUTH_PEPPER_FILE"},
			Value:   "pepper",
		},
		&cli.StringFlag{
			Name:    "token-store",
			Usage:   "Token backend: sqlite, redis",
			EnvVars: []string{"AUTH_TOKEN_STORE"},
			Value:   app.TokenStoreSQLite,
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address for the redis token store",
			EnvVars: []string{"AUTH_REDIS_ADDR"},
			Value:   "localhost:6379",
		},
		&cli.StringFlag{
			Name:    "redis-password",
			EnvVars: []string{"AUTH_REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			EnvVars: []string{"AUTH_REDIS_DB"},
		},
	}
}

// MigrateCommand applies the embedded schema migrations.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			db, err := app.OpenDatabase(c.String("database"))
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(c.App.Writer, "migrations applied")
			return nil
		},
	}
}

// env is what a command needs to touch persisted state.
type env struct {
	db     *sqlite.Store
	tokens store.Tokens
	redis  *goredis.Client
}

func (e *env) Close() error {
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	errs = append(errs, e.db.Close())
	return errors.Join(errs...)
}

// openEnv opens the database, applying migrations, and the configured token
// store.
func openEnv(c *cli.Context) (*env, error) {
	cryptox.SetPepperPath(c.String("pepper"))

	db, err := app.OpenDatabase(c.String("database"))
	if err != nil {
		return nil, err
	}

	tokens, client, err := app.OpenTokenStore(context.Background(), app.Config{
		TokenStore:    c.String("token-store"),
		RedisAddr:     c.String("redis-addr"),
		RedisPassword: c.String("redis-password"),
		RedisDB:       c.Int("redis-db"),
	}, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &env{db: db, tokens: tokens, redis: client}, nil
}

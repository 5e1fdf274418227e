package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/idx"
)

const usersTable = "users"

// UserCommand returns the user subcommand group.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage principals in the bundled users table",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Password; generated and printed when empty",
					},
				},
				Action: userAdd,
			},
			{
				Name:      "deactivate",
				Usage:     "Deactivate a user and revoke their tokens",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "keep-tokens",
						Usage: "Leave issued tokens in place; they still fail verification",
					},
				},
				Action: userDeactivate,
			},
			{
				Name:      "activate",
				Usage:     "Reactivate a user",
				ArgsUsage: "USER_ID",
				Action:    userActivate,
			},
		},
	}
}

func userAdd(c *cli.Context) error {
	email, username := c.String("email"), c.String("username")
	if email == "" && username == "" {
		return errors.New("one of --email or --username is required")
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	password := c.String("password")
	generated := password == ""
	if generated {
		if password, err = cryptox.GeneratePassword(); err != nil {
			return err
		}
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	id := idx.New().String()
	rec := store.Record{
		"id":       id,
		"name":     c.String("name"),
		"password": hash,
	}
	if email != "" {
		rec["email"] = email
	}
	if username != "" {
		rec["username"] = username
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.db.Users().Insert(ctx, usersTable, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return errors.New("a user with that email or username already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "created user %s\n", id)
	if generated {
		fmt.Fprintf(c.App.Writer, "password: %s\n", password)
	}
	return nil
}

func userDeactivate(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := setActive(ctx, e, id, false); err != nil {
		return err
	}

	if c.Bool("keep-tokens") {
		fmt.Fprintf(c.App.Writer, "deactivated %s\n", id)
		return nil
	}

	n, err := e.tokens.DeleteByPrincipal(ctx, id, store.TokenFilter{})
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "deactivated %s, revoked %d token(s)\n", id, n)
	return nil
}

func userActivate(c *cli.Context) error {
	id, err := userIDArg(c)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := setActive(ctx, e, id, true); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "activated %s\n", id)
	return nil
}

func setActive(ctx context.Context, e *env, id string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	err := e.db.Users().Update(ctx, usersTable, "id", id, store.Record{"is_active": v})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("user %s not found", id)
	}
	return err
}

func userIDArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("USER_ID is required")
	}
	return c.Args().First(), nil
}

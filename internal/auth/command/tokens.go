package command

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
)

// TokensCommand returns the tokens subcommand group.
func TokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Inspect and prune token records",
		Subcommands: []*cli.Command{
			{
				Name:   "cleanup",
				Usage:  "Delete expired token records",
				Action: tokensCleanup,
			},
			{
				Name:      "list",
				Usage:     "List a principal's token records",
				ArgsUsage: "PRINCIPAL_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "guard", Aliases: []string{"g"}, Usage: "Only records of this guard"},
				},
				Action: tokensList,
			},
		},
	}
}

func tokensCleanup(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := e.tokens.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "deleted %d expired record(s)\n", n)
	return nil
}

// tokensList prints fingerprints, never raw token values.
func tokensList(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("PRINCIPAL_ID is required")
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recs, err := e.tokens.FindByPrincipal(ctx, c.Args().First(), c.String("guard"))
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GUARD\tTYPE\tSESSION\tEXPIRES\tFINGERPRINT")
	for _, r := range recs {
		expires := "never"
		if r.ExpiresAt != nil {
			expires = r.ExpiresAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Guard, r.Type, r.SessionID, expires, cryptox.FingerprintToken(r.Token)[:16])
	}
	return tw.Flush()
}

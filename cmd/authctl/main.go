// Command authctl administers a tokenguard deployment: schema migrations,
// users in the bundled table, and token records.
package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/tokenguard/internal/auth/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Command migrate applies, rolls back, or reports the status of the
// control plane's goose-managed schema migrations against either SQL
// backend.
package main

import (
	"fmt"
	"os"

	"github.com/surpluscoord/control-plane/cmd/migrate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

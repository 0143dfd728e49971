// Command server runs the surplus-coordination control plane's HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/surpluscoord/control-plane/cmd/server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command inventario manages forestry inventories: metadata, measured rows,
// photographs and zip exports.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/inventario/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

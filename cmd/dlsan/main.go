// Command dlsan checks that compiler transformations keep, merge or drop
// debug locations the way the dominance of what they replace requires.
package main

import (
	"os"

	"github.com/roach88/dlsan/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Bricklift - schema migration engine for versioned brick assembly assets.
//
// Bricklift walks a corpus of composite brick assets and scenes, regenerates
// stale connectivity and collider geometry in dependency order, and
// re-derives the physical connections between parts afterwards.
package main

import (
	"fmt"
	"os"

	"github.com/bricklift/bricklift/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

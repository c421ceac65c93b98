// Invfind - Inversion caller for pangenome graphs.
//
// Invfind scans the paths of a GFA pangenome graph for segments that
// run reversed relative to a chosen reference path, and collates the
// calls from all assemblies into a single table.
package main

import (
	"fmt"
	"os"

	"github.com/pangraphs/invfind/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

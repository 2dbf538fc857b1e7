// Taxon - SNOMED CT hierarchy engine for Go.
//
// Taxon folds an RF2 relationship snapshot into the active IS-A hierarchy
// and answers ancestor, child, subtree and subsumption queries from the CLI
// or over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/taxon-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

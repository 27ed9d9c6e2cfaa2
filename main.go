// Capgraph - Graph-grounded assistant for enterprise capability models.
//
// Capgraph turns a Neo4j capability model into grounded context for
// humans and LLMs: natural-language queries, subtree expansion, gap
// audits and an MCP server, online against Neo4j or offline against a
// local snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/vmoffice/capgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

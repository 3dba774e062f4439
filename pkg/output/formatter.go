// Package output prints colorized console reports for one-shot CLI runs.
package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// PrintGraphReport prints the reference-graph summary: statistics,
// orphans, and the most-referenced ranking.
func PrintGraphReport(catalogDir string, stats graph.Stats, orphans []*graph.Node, top []*graph.Node) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("Asset Analyzer - Reference Graph Report")
	bold.Println("========================================")
	fmt.Printf("Catalog: %s\n", catalogDir)
	fmt.Printf("Records: %d\n", stats.Nodes)
	fmt.Printf("References: %d\n", stats.Edges)
	fmt.Printf("Avg out-degree: %.2f\n", stats.AvgOutDegree)
	fmt.Println()

	if len(orphans) == 0 {
		green.Println("No orphaned records.")
	} else {
		red.Printf("ORPHANED RECORDS (%d):\n", len(orphans))
		for _, n := range orphans {
			yellow.Printf("  %s", n.Key)
			cyan.Printf("  (%s)\n", n.Record.TypeName())
		}
	}
	fmt.Println()

	if len(top) > 0 {
		bold.Println("MOST REFERENCED:")
		for i, n := range top {
			fmt.Printf("  %2d. ", i+1)
			cyan.Printf("%s", n.Key)
			fmt.Printf("  refs=%d deps=%d\n", n.ReferenceCount(), n.DependencyCount())
		}
	}
}

// PrintQueryResults prints the records a query matched, in match order.
func PrintQueryResults(matched []*record.Record) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	if len(matched) == 0 {
		bold.Println("No records matched.")
		return
	}
	bold.Printf("Matched %d record(s):\n", len(matched))
	for _, r := range matched {
		fmt.Printf("  ")
		cyan.Printf("%s", r.Key)
		fmt.Printf("  (%s)\n", r.TypeName())
	}
}

// PrintCycles prints reference cycles, one per line.
func PrintCycles(cycles [][]*graph.Node) {
	if len(cycles) == 0 {
		return
	}
	yellow := color.New(color.FgYellow)
	yellow.Printf("REFERENCE CYCLES (%d):\n", len(cycles))
	for _, cycle := range cycles {
		fmt.Printf("  ")
		for i, n := range cycle {
			if i > 0 {
				fmt.Printf(" <-> ")
			}
			fmt.Printf("%s", n.Key)
		}
		fmt.Println()
	}
}

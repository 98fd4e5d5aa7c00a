// Catalog tool - validates an upgrade catalog and exports it as CSV.
//
// Usage: go run ./cmd/catalog -catalog upgrades.yaml -out catalog.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pthm-cable/slimekeep/upgrades"
)

func main() {
	catalogPath := flag.String("catalog", "", "Path to catalog YAML (empty = embedded default)")
	outPath := flag.String("out", "", "Output CSV path (empty = stdout)")
	unitType := flag.String("unit", "", "Only list upgrades for this unit type")
	flag.Parse()

	catalog, err := upgrades.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid catalog: %v\n", err)
		os.Exit(1)
	}

	if *unitType != "" {
		opts := catalog.Options(*unitType)
		if len(opts) == 0 {
			fmt.Fprintf(os.Stderr, "No upgrades for unit type %q\n", *unitType)
			os.Exit(1)
		}
		for _, d := range opts {
			fmt.Printf("%-20s tier %d path %d  %4d coins %d essence\n", d.ID, d.Tier, d.Path, d.CoinCost, d.EssenceCost)
		}
		return
	}

	var w io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *outPath, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := catalog.WriteCSV(w); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write CSV: %v\n", err)
		os.Exit(1)
	}
	if *outPath != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d upgrades for %d unit types to %s\n", catalog.Len(), len(catalog.UnitTypes()), *outPath)
	}
}

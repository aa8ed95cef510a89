// gen-diagrams renders the example workflows as Mermaid and ASCII diagrams
// for the documentation.
// Run: go run ./cmd/gen-diagrams [examples-dir] [out-dir]
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/gaiaflow/internal/diagram"
	"github.com/rendis/gaiaflow/internal/validation"
)

func main() {
	srcDir, outDir := "examples", filepath.Join("docs", "diagrams")
	if len(os.Args) > 1 {
		srcDir = os.Args[1]
	}
	if len(os.Args) > 2 {
		outDir = os.Args[2]
	}

	if err := generate(srcDir, outDir); err != nil {
		fmt.Fprintf(os.Stderr, "gen-diagrams: %v\n", err)
		os.Exit(1)
	}
}

func generate(srcDir, outDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return err
		}
		wf, result := validation.Load(data)
		if wf == nil {
			return fmt.Errorf("%s: %s", name, strings.Join(result.Messages(), "; "))
		}
		if !result.Valid() {
			fmt.Fprintf(os.Stderr, "warning: %s is invalid, drawing it anyway\n", name)
		}

		model := diagram.Build(wf, nil)
		base := filepath.Join(outDir, wf.ID)

		mermaid := "```mermaid\n" + diagram.RenderMermaid(model) + "\n```\n"
		if err := os.WriteFile(base+".md", []byte(mermaid), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(base+".txt", []byte(diagram.RenderASCII(model)), 0o644); err != nil {
			return err
		}
		fmt.Printf("%s -> %s.{md,txt}\n", name, base)
	}
	return nil
}

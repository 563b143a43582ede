package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cmunell/featurespace/data"
)

// outputJSON writes a value as formatted JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readDataset reads a TSV dataset from path, or stdin for "-".
func readDataset(path string) (*data.Dataset, error) {
	if path == "-" {
		return data.ReadTSV(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	ds, err := data.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func labelStrings(labels []data.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}

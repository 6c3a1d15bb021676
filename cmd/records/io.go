package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	records "github.com/goliatone/go-records"
)

func (a *app) readRecords(cmd *cobra.Command) ([]records.Record, error) {
	var (
		raw []byte
		err error
	)
	if a.input == "" || a.input == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(a.input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	return recordsAt(doc, a.dataPath)
}

// recordsAt walks the dotted path through nested objects and returns the
// array found there as records.
func recordsAt(doc any, path string) ([]records.Record, error) {
	current := doc
	if path != "" {
		for _, segment := range strings.Split(path, ".") {
			object, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("data path %q: %q is not inside an object", path, segment)
			}
			if current, ok = object[segment]; !ok {
				return nil, fmt.Errorf("data path %q: %q not found", path, segment)
			}
		}
	}

	items, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of records, got %T", current)
	}
	out := make([]records.Record, len(items))
	for i, item := range items {
		switch typed := item.(type) {
		case map[string]any:
			out[i] = typed
		case nil:
		default:
			return nil, fmt.Errorf("element %d is %T, not an object", i, item)
		}
	}
	return out, nil
}

func writeJSON(cmd *cobra.Command, output string, value any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if output == "" || output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

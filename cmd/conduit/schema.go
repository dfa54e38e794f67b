package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Emit the JSON Schema describing every registered element",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := schema.Generate(registry.Default)
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := os.Stdout.Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "output path, or - for stdout")
	return cmd
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newExportCmd creates the 'export' subcommand, which flattens the store
// into a single denormalized JSON document.
func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the archive as a JSON document",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			doc, err := appInstance.GetStore().Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()

			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			cmd.Printf("Exported %d exhibitions to %s\n", len(doc.Exhibitions), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "export.json", "output file")
	return cmd
}

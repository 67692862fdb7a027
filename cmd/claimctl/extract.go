package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/spreadsheet"
)

type extractResult struct {
	File     string                  `json:"file"`
	Kind     string                  `json:"kind"`
	Fields   *entity.ExtractedFields `json:"fields,omitempty"`
	Manifest []entity.ManifestRow    `json:"manifest,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var known []string

	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Print the vendor, date, invoice number and total of each document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := startContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			manifests := spreadsheet.NewManifestReader(c.Logger())
			results := make([]extractResult, 0, len(args))
			failed := 0

			for _, path := range args {
				res := extractResult{File: path}

				payload, err := os.ReadFile(path)
				if err == nil {
					var att entity.Attachment
					if att, err = entity.NewAttachment(payload); err == nil {
						res.Kind = att.Kind
						if att.IsManifest() {
							res.Manifest, err = manifests.ReadRows(cmd.Context(), att.Payload)
						} else {
							var lines []entity.OcrLine
							if lines, err = c.TextExtractor().TextLines(cmd.Context(), att.Payload); err == nil {
								fields := c.Extractor().ExtractContext(cmd.Context(), lines, known...)
								res.Fields = &fields
							}
						}
					}
				}
				if err != nil {
					res.Error = err.Error()
					failed++
				}
				results = append(results, res)
			}

			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&known, "known-invoice", nil, "invoice number to accept when none is labelled in the text")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/core"
)

type importOptions struct {
	delimiter string
	format    string
	publish   bool
}

func newImportCmd(e *env) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Import products from a CSV or XLSX file, or a document URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ingest, err := opts.ingestOptions(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ref := args[0]

			var result core.ImportResult
			if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
				result, err = e.service().ImportDocument(ctx, e.caller, ref, ingest...)
			} else {
				f, openErr := os.Open(ref)
				if openErr != nil {
					return fmt.Errorf("%w: %v", core.ErrInvalidInput, openErr)
				}
				defer f.Close()
				result, err = e.service().ImportReader(ctx, e.caller, filepath.Base(ref), f, ingest...)
			}
			if err != nil {
				return err
			}

			if opts.publish {
				for _, id := range result.ProductIDs {
					if err := e.service().SetVisibility(ctx, e.caller, id, true); err != nil {
						return fmt.Errorf("publish %s: %w", id, err)
					}
				}
			}
			return printJSON(e.out, result)
		},
	}

	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", "CSV field delimiter (default ',', use 'tab' for tab)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: csv or xlsx (default: detect)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Make imported products visible immediately")

	return cmd
}

func (o importOptions) ingestOptions(name string) ([]core.IngestOption, error) {
	var opts []core.IngestOption

	switch strings.ToLower(o.format) {
	case "":
		if strings.EqualFold(filepath.Ext(name), ".xlsx") {
			opts = append(opts, core.WithFormat(core.FormatXLSX))
		}
	case "csv":
		opts = append(opts, core.WithFormat(core.FormatCSV))
	case "xlsx":
		opts = append(opts, core.WithFormat(core.FormatXLSX))
	default:
		return nil, fmt.Errorf("%w: --format must be csv or xlsx", core.ErrInvalidInput)
	}

	switch d := []rune(o.delimiter); {
	case len(d) == 0:
	case strings.EqualFold(o.delimiter, "tab"):
		opts = append(opts, core.WithDelimiter('\t'))
	case len(d) == 1:
		opts = append(opts, core.WithDelimiter(d[0]))
	default:
		return nil, fmt.Errorf("%w: --delimiter must be a single character", core.ErrInvalidInput)
	}
	return opts, nil
}

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/pagination"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [term]",
		Short: "Fetch every page of a search and write the ordered list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}

			fetcher := pagination.NewBatchFetcher(a.gateway, pagination.Config{
				MaxConcurrency: a.cfg.ExportConcurrency,
				Timeout:        a.cfg.HTTPTimeout,
			})
			people, fetchErr := fetcher.FetchAll(cmd.Context(), term)
			if fetchErr != nil && len(people) == 0 {
				return fetchErr
			}
			if fetchErr != nil {
				log.Warn().Err(fetchErr).Msg("Export is incomplete")
			}

			merged := character.Merge(people)
			if err := writeExport(cmd.OutOrStdout(), format, merged); err != nil {
				return err
			}
			return fetchErr
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or csv")
	return cmd
}

func writeExport(w io.Writer, format string, people []character.Character) error {
	if format == "csv" {
		cw := csv.NewWriter(w)
		cw.Write([]string{"name", "eye_color", "gender", "created"})
		for _, c := range people {
			cw.Write([]string{c.Name, c.EyeColor, c.Gender, c.DisplayDate()})
		}
		cw.Flush()
		return cw.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(people)
}

package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/county-api/internal/county"
	"github.com/sells-group/county-api/internal/model"
)

var countyFormat string

var countyCmd = &cobra.Command{
	Use:   "county",
	Short: "Look up county records",
}

var countyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one county record by Wikidata id (e.g. Q26587)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCounty(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Service.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return writeCounty(cmd.OutOrStdout(), countyFormat, args[0], rec)
	},
}

func init() {
	countyGetCmd.Flags().StringVar(&countyFormat, "format", "json", "output format: json, yaml or geojson")
	countyCmd.AddCommand(countyGetCmd)
	rootCmd.AddCommand(countyCmd)
}

// writeCounty renders rec in the requested format.
func writeCounty(w io.Writer, format, id string, rec *model.County) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rec), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	case "geojson":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(county.Feature(id, rec)), "encode geojson")
	default:
		return eris.Errorf("unknown format %q (want json, yaml or geojson)", format)
	}
}

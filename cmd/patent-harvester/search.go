// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/patent-harvester/internal/index"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the results index (retrieve, runs, export)",
	Long: `Search works on the SQLite index that harvest and author runs fill.
Every committed record is stored once per (link, author) pair and
re-ingesting a patent updates it in place.`,
}

// --- retrieve subcommand ---

var searchRetrieveCmd = &cobra.Command{
	Use:   "retrieve [text]",
	Short: "Find records by title/abstract text and filters",
	Long: `Retrieve matches the text against patent titles and abstracts, and
narrows the result by author, country, run or classification code.`,
	RunE: runSearchRetrieve,
}

func runSearchRetrieve(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide text, --author, --country, --run or --code")
	}

	results, err := store.Retrieve(cmd.Context(), opts)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(cmd.OutOrStdout(), results, jsonOutput)
}

func formatRetrieveOutput(w io.Writer, results []index.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-16s  %-50s  %-20s  %s\n", "Rank", "Patent", "Title", "Author", "Published")
	fmt.Fprintln(w, strings.Repeat("-", 108))
	for i, r := range results {
		fmt.Fprintf(w, "%-4d  %-16s  %-50s  %-20s  %s\n",
			i+1, truncate(r.PatentCode, 16), truncate(r.Title, 50), truncate(r.Author, 20), r.PublicationDate)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- runs subcommand ---

var searchRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List indexed runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openIndex(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs indexed.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %5d  %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Records, r.Query)
		}
		return nil
	},
}

// --- export subcommand ---

var searchExportCmd = &cobra.Command{
	Use:   "export [text]",
	Short: "Export indexed records to YAML or JSON",
	Long: `Export writes the whole index (or the subset matching the same filters
as retrieve) to export.yaml or export.json in the index directory.`,
	RunE: runSearchExport,
}

func runSearchExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(cmd.Context(), opts)
	case "json":
		path, err = store.ExportJSON(cmd.Context(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Exported to", path)
	return nil
}

func init() {
	searchCmd.PersistentFlags().String("index-dir", "index", "results index directory")

	for _, c := range []*cobra.Command{searchRetrieveCmd, searchExportCmd} {
		c.Flags().String("author", "", "filter by author name")
		c.Flags().String("country", "", "filter by country")
		c.Flags().String("run", "", "filter by run ID")
		c.Flags().String("code", "", "filter by classification code substring")
	}
	searchRetrieveCmd.Flags().Int("limit", 0, "maximum number of results (default 20)")
	searchRetrieveCmd.Flags().Bool("json", false, "output results as JSON")
	searchExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	searchCmd.AddCommand(searchRetrieveCmd, searchRunsCmd, searchExportCmd)
	rootCmd.AddCommand(searchCmd)
}

// --- shared helpers ---

func openIndex(cmd *cobra.Command) (*index.Store, error) {
	dir, _ := cmd.Flags().GetString("index-dir")
	if dir == "" {
		dir = "index"
	}
	return index.Open(dir, 0)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) index.QueryOptions {
	author, _ := cmd.Flags().GetString("author")
	country, _ := cmd.Flags().GetString("country")
	runID, _ := cmd.Flags().GetString("run")
	code, _ := cmd.Flags().GetString("code")
	limit, _ := cmd.Flags().GetInt("limit")

	return index.QueryOptions{
		Query:      strings.Join(args, " "),
		Author:     author,
		Country:    country,
		RunID:      runID,
		Code:       code,
		MaxResults: limit,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

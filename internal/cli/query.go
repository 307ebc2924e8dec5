package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/model"
	"docrag/internal/service"
	"docrag/internal/vectorstore"
)

const (
	queryPreviewRunes = 500
	listPreviewRunes  = 200
)

func newQueryCommand(o *options) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Show the stored chunks most similar to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Querying with: %s\n", args[0])
			rag := service.NewRAGService(app.Store, app.LLM, o.cfg.LLM.Model, o.cfg.Retrieval.K)
			records, err := rag.Retrieve(cmd.Context(), args[0], k)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No documents found for the query.")
				return nil
			}
			fmt.Fprintf(out, "Found %d documents:\n", len(records))
			for i, r := range records {
				fmt.Fprintf(out, "\nDocument %d (score %.4f):\n", i+1, r.Score)
				fmt.Fprintf(out, "Content: %s\n", truncate(r.Text, queryPreviewRunes))
				fmt.Fprintf(out, "Metadata: %s\n", formatMetadata(r))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 5, "number of results")
	return cmd
}

func newListCommand(o *options) *cobra.Command {
	var (
		name  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Store.List(cmd.Context(), vectorstore.Filter{Name: name, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total records retrieved: %d\n", len(records))
			for i, r := range records {
				fmt.Fprintf(out, "Record %d:\n", i+1)
				fmt.Fprintf(out, "Metadata: %s\n", formatMetadata(r))
				fmt.Fprintf(out, "Content: %s\n", truncate(r.Text, listPreviewRunes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only records of this document")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (0 = all)")
	return cmd
}

func formatMetadata(r model.Record) string {
	parts := make([]string, 0, len(r.Metadata))
	for _, k := range slices.Sorted(maps.Keys(r.Metadata)) {
		parts = append(parts, k+"="+r.Metadata[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

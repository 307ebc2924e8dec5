package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/pipeline"
	"docrag/pkg/tasks"
)

func newIndexCommand(o *options) *cobra.Command {
	var (
		sourceKind  string
		concurrency int
		noProgress  bool
	)
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index documents into the vector store",
		Long: `Index every supported document under path (default: ingest.document_directory).
Documents whose name is already present in the store are skipped.

Examples:
  ragctl index                       # Index the configured directory
  ragctl index /data/docs            # Index a specific directory
  ragctl index --source minio inbox/ # Index objects under a MinIO prefix`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := tasks.IngestTask{Source: sourceKind}
			if len(args) > 0 {
				task.Root = args[0]
			}

			app, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			src, err := app.ResolveLocalSource(task)
			if err != nil {
				return err
			}

			opts := []pipeline.Option{pipeline.WithConcurrency(concurrency)}
			var bar *progressbar.ProgressBar
			if !noProgress {
				bar = progressbar.NewOptions(-1,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("Indexing"),
					progressbar.OptionShowCount(),
					progressbar.OptionSpinnerType(14),
				)
				var mu sync.Mutex
				opts = append(opts, pipeline.WithProgress(func(name, outcome string) {
					mu.Lock()
					defer mu.Unlock()
					bar.Describe(fmt.Sprintf("%-11s %s", outcome, name))
					_ = bar.Add(1)
				}))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scanning %s...\n", src.Location())
			result, runErr := app.Processor(opts...).Run(cmd.Context(), src)
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if result != nil {
				printResult(cmd, result)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&sourceKind, "source", "", "document source: fs or minio (default: ingest.source)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "parallel workers (default: ingest.concurrency or CPU count)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func printResult(cmd *cobra.Command, r *pipeline.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d of %d files in %s\n", r.Indexed, r.Seen, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  skipped (already indexed): %d\n", r.Skipped)
	fmt.Fprintf(out, "  empty:                     %d\n", r.Empty)
	fmt.Fprintf(out, "  unsupported:               %d\n", r.Unsupported)
	fmt.Fprintf(out, "  failed:                    %d\n", r.Failed)
	fmt.Fprintf(out, "  chunks: %d in %d batches\n", r.Chunks, r.Batches)
}

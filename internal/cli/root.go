// Package cli 实现 ragctl 命令行工具。
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrag/internal/bootstrap"
	"docrag/internal/config"
	"docrag/pkg/log"
)

// options 是所有子命令共享的状态。
type options struct {
	cfgFile string
	verbose bool
	cfg     config.Config
}

// openApp 装配存储与管道，调用方负责 Close。
func (o *options) openApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return app, nil
}

// NewRootCommand 创建 ragctl 的根命令。
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Index documents and query them with retrieval-augmented generation",
		Long: `ragctl indexes a document directory into the vector store and queries it.

Example usage:
  ragctl index ./documents          # Index a directory
  ragctl query "quarterly revenue"   # Show the most similar chunks
  ragctl generate "hello"            # Send a raw prompt to the generation backend`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			o.cfg = cfg

			level := "warn"
			if o.verbose {
				level = "debug"
			}
			log.Init(level, "console", cfg.Log.OutputPath)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "./configs/config.yaml", "config file")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIndexCommand(o),
		newQueryCommand(o),
		newListCommand(o),
		newGenerateCommand(o),
		newTokenCommand(o),
	)
	return root
}

// Execute 运行根命令，失败时以状态码 1 退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// truncate 按字符截断并追加省略号。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

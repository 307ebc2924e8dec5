package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"docrag/pkg/log"
)

// FS 遍历本地目录树。
type FS struct {
	root    string
	matcher *Matcher
}

// NewFS 创建本地目录来源。
func NewFS(root string, matcher *Matcher) *FS {
	if matcher == nil {
		matcher = NewMatcher(nil, nil)
	}
	return &FS{root: root, matcher: matcher}
}

func (s *FS) Location() string { return s.root }

func (s *FS) Walk(ctx context.Context, fn func(Item) error) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("document directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("document directory %s is not a directory", s.root)
	}

	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 单个条目不可读时跳过
			log.Warnf("[Source] 无法访问 %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && s.matcher.ExcludeDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.matcher.Match(rel) {
			return nil
		}

		var size int64
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		p := path
		return fn(NewItem(d.Name(), p, size, func(context.Context) ([]byte, error) {
			return os.ReadFile(p)
		}))
	})
}

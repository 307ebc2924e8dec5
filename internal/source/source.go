// Package source 枚举待导入的文档，支持本地目录与 MinIO 存储桶。
package source

import (
	"context"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Item 是一个待导入的文件，内容按需读取。
type Item struct {
	Name string // 文件名，不含目录
	Path string // 本地路径或对象键
	Size int64

	read func(ctx context.Context) ([]byte, error)
}

// NewItem 构造一个 Item。
func NewItem(name, path string, size int64, read func(ctx context.Context) ([]byte, error)) Item {
	return Item{Name: name, Path: path, Size: size, read: read}
}

// Read 读取文件内容。
func (i Item) Read(ctx context.Context) ([]byte, error) {
	return i.read(ctx)
}

// Source 递归枚举文件。fn 返回错误时停止枚举并返回该错误。
type Source interface {
	Walk(ctx context.Context, fn func(Item) error) error
	// Location 描述来源，用于日志与台账。
	Location() string
}

// Matcher 按 doublestar 模式过滤相对路径。includes 为空时匹配全部。
type Matcher struct {
	includes []string
	excludes []string
}

// NewMatcher 创建 Matcher。
func NewMatcher(includes, excludes []string) *Matcher {
	if len(includes) == 0 {
		includes = []string{"**"}
	}
	return &Matcher{includes: includes, excludes: excludes}
}

// Match 报告相对路径 rel（以 / 分隔）是否应被导入。
func (m *Matcher) Match(rel string) bool {
	return m.any(m.includes, rel) && !m.any(m.excludes, rel)
}

// ExcludeDir 报告整个目录是否被排除。
func (m *Matcher) ExcludeDir(rel string) bool {
	rel = strings.TrimSuffix(rel, "/")
	return m.any(m.excludes, rel) || m.any(m.excludes, rel+"/")
}

func (m *Matcher) any(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		// "*.txt" 这类不含目录的模式也匹配子目录中的文件
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, path.Base(rel)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

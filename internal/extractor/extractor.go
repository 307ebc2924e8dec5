// Package extractor 将不同格式的文件转换为纯文本。
package extractor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docrag/pkg/log"
	"docrag/pkg/tika"
)

// Extractor 从文件内容中提取文本。
type Extractor interface {
	Extract(ctx context.Context, name string, content []byte) (string, error)
}

// ExtractorFunc 适配普通函数为 Extractor。
type ExtractorFunc func(ctx context.Context, name string, content []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, name string, content []byte) (string, error) {
	return f(ctx, name, content)
}

// Registry 按扩展名分发到具体的 Extractor，未注册的扩展名返回空文本。
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry 注册内置格式。tikaClient 为 nil 时旧版 Office 格式不可用，
// 非 nil 时 PDF 也交给 Tika。
func NewRegistry(tikaClient *tika.Client) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(ExtractorFunc(extractPlainText), ".txt", ".md", ".csv", ".log")
	r.Register(ExtractorFunc(extractDOCX), ".docx")
	r.Register(ExtractorFunc(extractXLSX), ".xlsx")
	r.Register(ExtractorFunc(extractPPTX), ".pptx")
	r.Register(ExtractorFunc(extractPDF), ".pdf")
	if tikaClient != nil {
		r.Register(&tikaExtractor{client: tikaClient}, ".pdf", ".doc", ".xls", ".ppt", ".rtf", ".odt")
	}
	return r
}

// Register 为一个或多个扩展名注册 Extractor，已有的注册会被覆盖。
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[Format(ext)] = e
	}
}

// Supports 报告该文件名的扩展名是否有对应的 Extractor。
func (r *Registry) Supports(name string) bool {
	_, ok := r.byExt[Format(name)]
	return ok
}

// Formats 返回已注册的扩展名，按字母序。
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract 提取文本。任何错误都会被记录并转换为空文本。
func (r *Registry) Extract(ctx context.Context, name string, content []byte) string {
	e, ok := r.byExt[Format(name)]
	if !ok {
		log.Debugf("[Extractor] 不支持的文件类型, 跳过: %s", name)
		return ""
	}
	text, err := e.Extract(ctx, name, content)
	if err != nil {
		log.Warnf("[Extractor] 提取文本失败, 文件: %s, 错误: %v", name, err)
		return ""
	}
	return text
}

// ExtractFile 读取并提取本地文件。
func (r *Registry) ExtractFile(ctx context.Context, path string) string {
	if !r.Supports(path) {
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("[Extractor] 读取文件失败: %s, 错误: %v", path, err)
		return ""
	}
	return r.Extract(ctx, filepath.Base(path), content)
}

// Format 返回小写、带点的扩展名。参数既可以是文件名也可以是扩展名本身。
func Format(name string) string {
	if strings.HasPrefix(name, ".") && !strings.Contains(name[1:], ".") {
		return strings.ToLower(name)
	}
	return strings.ToLower(filepath.Ext(name))
}

package extractor

import (
	"bytes"
	"context"

	"docrag/pkg/tika"
)

// tikaExtractor 通过 Apache Tika 处理 PDF 以及旧版 Office 格式。
type tikaExtractor struct {
	client *tika.Client
}

func (t *tikaExtractor) Extract(ctx context.Context, name string, content []byte) (string, error) {
	return t.client.ExtractText(ctx, bytes.NewReader(content), name)
}

package extractor

import (
	"context"
	"encoding/xml"
	"strings"
)

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Items []docxItem `xml:",any"`
}

// docxItem 是段落中的 run 或超链接。
type docxItem struct {
	XMLName xml.Name
	Runs    []docxRun `xml:"r"`
	Items   []inline  `xml:",any"`
}

type docxRun struct {
	Items []inline `xml:",any"`
}

// extractDOCX 按顺序输出正文段落，段落之间以换行分隔。
func extractDOCX(_ context.Context, _ string, content []byte) (string, error) {
	pkg, err := openPackage(content)
	if err != nil {
		return "", err
	}
	var doc docxDocument
	if err := pkg.unmarshal("word/document.xml", &doc); err != nil {
		return "", err
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, item := range p.Items {
			switch item.XMLName.Local {
			case "r":
				writeRun(&sb, item.Items)
			case "hyperlink", "ins", "smartTag":
				for _, r := range item.Runs {
					writeRun(&sb, r.Items)
				}
			}
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return strings.Join(paragraphs, "\n"), nil
}

func writeRun(sb *strings.Builder, items []inline) {
	for _, it := range items {
		switch it.XMLName.Local {
		case "t":
			sb.WriteString(it.Content)
		case "tab":
			sb.WriteByte('\t')
		case "br", "cr":
			sb.WriteByte('\n')
		}
	}
}

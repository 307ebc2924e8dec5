package extractor

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type pptxSlide struct {
	Shapes []pptxShape `xml:"cSld>spTree>sp"`
}

type pptxShape struct {
	TxBody *struct {
		Paragraphs []pptxParagraph `xml:"p"`
	} `xml:"txBody"`
}

type pptxParagraph struct {
	Items []pptxRun `xml:",any"`
}

type pptxRun struct {
	XMLName xml.Name
	T       string `xml:"t"`
}

// extractPPTX 按幻灯片编号输出每个形状的文本，每个形状后加换行。
func extractPPTX(_ context.Context, _ string, content []byte) (string, error) {
	pkg, err := openPackage(content)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, name := range pkg.numbered(slidePart) {
		var slide pptxSlide
		if err := pkg.unmarshal(name, &slide); err != nil {
			return "", err
		}
		for _, shape := range slide.Shapes {
			if shape.TxBody != nil {
				paragraphs := make([]string, 0, len(shape.TxBody.Paragraphs))
				for _, p := range shape.TxBody.Paragraphs {
					paragraphs = append(paragraphs, paragraphText(p))
				}
				sb.WriteString(strings.Join(paragraphs, "\n"))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

func paragraphText(p pptxParagraph) string {
	var sb strings.Builder
	for _, it := range p.Items {
		switch it.XMLName.Local {
		case "r", "fld":
			sb.WriteString(it.T)
		case "br":
			sb.WriteByte('\v')
		}
	}
	return sb.String()
}

package extractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var sheetPart = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

type xlsxSharedStrings struct {
	Items []struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxWorksheet struct {
	Rows []xlsxRow `xml:"sheetData>row"`
}

type xlsxRow struct {
	R     int        `xml:"r,attr"`
	Cells []xlsxCell `xml:"c"`
}

type xlsxCell struct {
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		T string `xml:"t"`
	} `xml:"is"`
}

// extractXLSX 输出每个工作表的每一行，非空单元格以空格连接，行尾加换行。
func extractXLSX(_ context.Context, _ string, content []byte) (string, error) {
	pkg, err := openPackage(content)
	if err != nil {
		return "", err
	}

	var shared []string
	if pkg.has("xl/sharedStrings.xml") {
		var sst xlsxSharedStrings
		if err := pkg.unmarshal("xl/sharedStrings.xml", &sst); err != nil {
			return "", err
		}
		for _, si := range sst.Items {
			if len(si.Runs) == 0 {
				shared = append(shared, si.T)
				continue
			}
			var sb strings.Builder
			for _, r := range si.Runs {
				sb.WriteString(r.T)
			}
			shared = append(shared, sb.String())
		}
	}

	var sb strings.Builder
	for _, name := range worksheetOrder(pkg) {
		var ws xlsxWorksheet
		if err := pkg.unmarshal(name, &ws); err != nil {
			return "", err
		}
		prev := 0
		for i, row := range ws.Rows {
			// 行号缺失的空行同样输出换行
			if i > 0 && row.R > prev+1 {
				sb.WriteString(strings.Repeat("\n", row.R-prev-1))
			}
			if row.R > 0 {
				prev = row.R
			} else {
				prev++
			}
			values := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				if v, ok := cellValue(c, shared); ok {
					values = append(values, v)
				}
			}
			sb.WriteString(strings.Join(values, " "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

func cellValue(c xlsxCell, shared []string) (string, bool) {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return "", false
		}
		return shared[idx], true
	case "inlineStr":
		return c.Inline.T, true
	case "b":
		if c.Value == "" {
			return "", false
		}
		if c.Value == "1" {
			return "True", true
		}
		return "False", true
	default:
		if c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}

// worksheetOrder 按 workbook.xml 中的顺序返回工作表，无法解析时按编号排序。
func worksheetOrder(pkg *ooxmlPackage) []string {
	var wb xlsxWorkbook
	if err := pkg.unmarshal("xl/workbook.xml", &wb); err == nil {
		targets := pkg.targets("xl/_rels/workbook.xml.rels", "xl")
		var ordered []string
		for _, s := range wb.Sheets {
			if t, ok := targets[s.RID]; ok && pkg.has(t) {
				ordered = append(ordered, t)
			}
		}
		if len(ordered) > 0 {
			return ordered
		}
	}
	return pkg.numbered(sheetPart)
}

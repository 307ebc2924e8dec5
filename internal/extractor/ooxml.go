package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var errMissingPart = errors.New("missing package part")

// ooxmlPackage 是一个已打开的 Office Open XML 压缩包。
type ooxmlPackage struct {
	files map[string]*zip.File
}

func openPackage(content []byte) (*ooxmlPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	pkg := &ooxmlPackage{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	return pkg, nil
}

func (p *ooxmlPackage) has(name string) bool {
	_, ok := p.files[name]
	return ok
}

func (p *ooxmlPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingPart, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (p *ooxmlPackage) unmarshal(name string, v interface{}) error {
	data, err := p.read(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// numbered 返回匹配 pattern 的部件名，按其中的数字排序，例如 slide2 在 slide10 之前。
func (p *ooxmlPackage) numbered(pattern *regexp.Regexp) []string {
	type part struct {
		name string
		n    int
	}
	var parts []part
	for name := range p.files {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, part{name, n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })
	out := make([]string, len(parts))
	for i, pt := range parts {
		out[i] = pt.name
	}
	return out
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// targets 解析 .rels 文件，返回 Id 到包内绝对路径的映射。
func (p *ooxmlPackage) targets(relsName, baseDir string) map[string]string {
	var rels relationships
	if err := p.unmarshal(relsName, &rels); err != nil {
		return nil
	}
	out := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		target := r.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join(baseDir, target)
		}
		out[r.ID] = target
	}
	return out
}

// inline 收集带名字的子元素，保留文档顺序。
type inline struct {
	XMLName xml.Name
	Content string `xml:",chardata"`
}

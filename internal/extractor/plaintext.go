package extractor

import (
	"bytes"
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"docrag/pkg/log"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cp1252 中未定义的字节，严格解码时视为错误。
var cp1252Undefined = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

// extractPlainText 依次尝试 UTF-8、cp1252 严格解码、cp1252 忽略非法字节。
func extractPlainText(_ context.Context, name string, content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(bytes.TrimPrefix(content, utf8BOM)), nil
	}
	log.Warnf("[Extractor] %s 不是合法的 UTF-8, 尝试 cp1252", name)

	if text, ok := decodeCP1252(content, false); ok {
		return text, nil
	}
	log.Warnf("[Extractor] %s 无法按 cp1252 严格解码, 忽略非法字节", name)

	text, _ := decodeCP1252(content, true)
	return text, nil
}

func decodeCP1252(content []byte, ignoreInvalid bool) (string, bool) {
	src := content
	for i, b := range content {
		if !cp1252Undefined[b] {
			continue
		}
		if !ignoreInvalid {
			return "", false
		}
		// 第一次命中时复制，之后只保留合法字节
		src = make([]byte, 0, len(content))
		src = append(src, content[:i]...)
		for _, c := range content[i+1:] {
			if !cp1252Undefined[c] {
				src = append(src, c)
			}
		}
		break
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(src)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Package chunker 将长文本切分为带重叠的片段。
package chunker

import "iter"

const (
	// DefaultChunkSize 是每个分块的默认最大字符数。
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 是相邻分块默认重叠的字符数。
	DefaultChunkOverlap = 200
)

// DefaultSeparators 按优先级分组：段落、行、句子、单词。
// 同一组内取最靠后的切分点。
var DefaultSeparators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", "。", "！", "？"},
	{" "},
}

// Splitter 按字符（rune）计数切分文本。
type Splitter struct {
	size       int
	overlap    int
	separators [][][]rune
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the boundary preference list.
func WithSeparators(groups [][]string) Option {
	return func(s *Splitter) {
		s.separators = toRunes(groups)
	}
}

// New 创建一个 Splitter。overlap 不小于 size 时按 size/4 处理。
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

// Size returns the configured chunk size.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split 返回一个惰性的分块序列，每次 range 都会从头重新切分。
//
// 每个分块最多 size 个字符；相邻分块恰好共享 overlap 个字符，
// 去掉后续分块的前 overlap 个字符后依次拼接即可还原原文。
func (s *Splitter) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		n := len(runes)
		start := 0
		for start < n {
			if n-start <= s.size {
				yield(string(runes[start:]))
				return
			}
			end := s.cut(runes, start)
			if !yield(string(runes[start:end])) {
				return
			}
			start = end - s.overlap
		}
	}
}

// cut 在 (start+overlap, start+size] 内寻找最优切分点。
func (s *Splitter) cut(runes []rune, start int) int {
	hi := start + s.size
	lo := start + s.overlap
	for _, group := range s.separators {
		best := -1
		for _, sep := range group {
			if c := lastCut(runes, start, lo, hi, sep); c > best {
				best = c
			}
		}
		if best > 0 {
			return best
		}
	}
	return hi
}

// lastCut 返回 sep 最后一次出现之后的位置 c，要求 lo < c <= hi 且 sep 不早于 start。
func lastCut(runes []rune, start, lo, hi int, sep []rune) int {
	m := len(sep)
	if m == 0 {
		return -1
	}
	for i := hi - m; i >= start && i+m > lo; i-- {
		if equalAt(runes, i, sep) {
			return i + m
		}
	}
	return -1
}

func equalAt(runes []rune, i int, sep []rune) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

func toRunes(groups [][]string) [][][]rune {
	out := make([][][]rune, 0, len(groups))
	for _, g := range groups {
		rg := make([][]rune, 0, len(g))
		for _, sep := range g {
			if sep != "" {
				rg = append(rg, []rune(sep))
			}
		}
		if len(rg) > 0 {
			out = append(out, rg)
		}
	}
	return out
}

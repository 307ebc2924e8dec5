package chunker

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rejoin 去掉后续分块的重叠前缀后拼接。
func rejoin(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		sb.WriteString(string([]rune(c)[overlap:]))
	}
	return sb.String()
}

func sampleText() string {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 6 {
			sb.WriteString("\n\n")
		} else if i%3 == 2 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Supercalifragilisticexpialidocious-without-any-spaces-at-all-for-a-long-while")
	return sb.String()
}

func TestNewDefaultsAndNormalisation(t *testing.T) {
	s := New()
	assert.Equal(t, DefaultChunkSize, s.Size())
	assert.Equal(t, DefaultChunkOverlap, s.Overlap())

	s = New(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 25, s.Overlap())

	s = New(WithChunkSize(-1), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, s.Size())
	assert.Equal(t, DefaultChunkOverlap, s.Overlap())
}

func TestSplitEmptyText(t *testing.T) {
	chunks := slices.Collect(New().Split(""))
	assert.Empty(t, chunks)
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	chunks := slices.Collect(New(WithChunkSize(50), WithOverlap(10)).Split("short text"))
	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplitRoundTripAndBounds(t *testing.T) {
	text := sampleText()
	cases := []struct{ size, overlap int }{
		{100, 20}, {64, 0}, {50, 49}, {200, 50}, {1000, 200}, {7, 3},
	}
	for _, tc := range cases {
		s := New(WithChunkSize(tc.size), WithOverlap(tc.overlap))
		chunks := slices.Collect(s.Split(text))
		require.NotEmpty(t, chunks)

		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), tc.size, "chunk %d too long", i)
			if i > 0 {
				prev := []rune(chunks[i-1])
				cur := []rune(c)
				assert.Equal(t, string(prev[len(prev)-tc.overlap:]), string(cur[:tc.overlap]),
					"size=%d overlap=%d chunk=%d", tc.size, tc.overlap, i)
			}
		}
		assert.Equal(t, text, rejoin(chunks, tc.overlap), "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph is a bit longer than the first."
	chunks := slices.Collect(New(WithChunkSize(40), WithOverlap(0)).Split(text))
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "First paragraph here.\n\n", chunks[0])
}

func TestSplitFallsBackToWordBoundary(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	chunks := slices.Collect(New(WithChunkSize(12), WithOverlap(0)).Split(text))
	assert.Equal(t, []string{"alpha beta ", "gamma delta ", "epsilon"}, chunks)
}

func TestSplitHardCutsUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := slices.Collect(New(WithChunkSize(10), WithOverlap(2)).Split(text))
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 9)}, chunks)
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("数据", 30)
	chunks := slices.Collect(New(WithChunkSize(20), WithOverlap(5)).Split(text))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20)
	}
	assert.Equal(t, text, rejoin(chunks, 5))
}

func TestSplitIsRestartable(t *testing.T) {
	seq := New(WithChunkSize(30), WithOverlap(5)).Split(sampleText())
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
}

func TestSplitStopsEarly(t *testing.T) {
	var got []string
	for c := range New(WithChunkSize(10), WithOverlap(0)).Split(strings.Repeat("y", 100)) {
		got = append(got, c)
		if len(got) == 2 {
			break
		}
	}
	assert.Len(t, got, 2)
}

func TestBatches(t *testing.T) {
	seq := slices.Values([]int{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, slices.Collect(Batches(seq, 3)))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5, 6, 7}}, slices.Collect(Batches(seq, 10)))
	assert.Len(t, slices.Collect(Batches(seq, 0)), 7)
	assert.Empty(t, slices.Collect(Batches(slices.Values([]int{}), 3)))
}

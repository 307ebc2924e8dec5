package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
)

// Frame is one line of the newline-delimited JSON response stream.
type Frame struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Skipped is set when the line could not be parsed; Raw holds it.
	Skipped bool   `json:"-"`
	Raw     string `json:"-"`
}

// Frames decodes r lazily. Blank lines are ignored. A read error ends the
// sequence with that error; the trailing line without a newline is still
// decoded.
func Frames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				if !yield(parseFrame(trimmed), nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Frame{}, err)
				}
				return
			}
		}
	}
}

func parseFrame(line string) Frame {
	var f Frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return Frame{Skipped: true, Raw: line}
	}
	return f
}

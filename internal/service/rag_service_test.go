package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/internal/vectorstore"
	"docrag/pkg/llm"
)

type fakeRetriever struct {
	records []model.Record
	err     error
	calls   int
	lastK   int
}

func (f *fakeRetriever) SimilaritySearch(_ context.Context, _ string, k int) ([]model.Record, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.records[:min(k, len(f.records))], nil
}

type fakeLLM struct {
	fragments  []string
	err        error
	lastModel  string
	lastPrompt string
}

func (f *fakeLLM) Generate(ctx context.Context, model, prompt string) (string, error) {
	var out string
	err := f.Stream(ctx, model, prompt, func(s string) error {
		out += s
		return nil
	})
	return out, err
}

func (f *fakeLLM) Stream(_ context.Context, model, prompt string, fn func(string) error) error {
	f.lastModel = model
	f.lastPrompt = prompt
	if f.err != nil {
		return f.err
	}
	for _, s := range f.fragments {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func records(texts ...string) []model.Record {
	out := make([]model.Record, 0, len(texts))
	for i, t := range texts {
		out = append(out, model.Record{ID: fmt.Sprint(i), Text: t, Metadata: map[string]string{"name": "doc.txt"}})
	}
	return out
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "what is X? X is a letter. X comes after W.",
		BuildPrompt("what is X?", records("X is a letter.", "X comes after W.")))
	assert.Equal(t, "q ", BuildPrompt("q", nil))
}

func TestAnswerUsesTopKInRankedOrder(t *testing.T) {
	store := &fakeRetriever{records: records("first", "second", "third", "fourth")}
	gen := &fakeLLM{fragments: []string{"The ", "answer"}}
	svc := NewRAGService(store, gen, "llama3.1:8b", 0)

	answer, err := svc.Answer(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "The answer", answer)
	assert.Equal(t, DefaultK, store.lastK)
	assert.Equal(t, "llama3.1:8b", gen.lastModel)
	assert.Equal(t, "question first second third", gen.lastPrompt)
}

func TestAnswerWithEmptyStore(t *testing.T) {
	gen := &fakeLLM{fragments: []string{"I don't know"}}
	svc := NewRAGService(&fakeRetriever{}, gen, "m", 3)

	answer, err := svc.Answer(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "I don't know", answer)
	assert.Equal(t, "anything ", gen.lastPrompt)
}

func TestAnswerRejectsBlankQuery(t *testing.T) {
	store := &fakeRetriever{}
	gen := &fakeLLM{}
	svc := NewRAGService(store, gen, "m", 3)

	_, err := svc.Answer(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, store.calls)
	assert.Empty(t, gen.lastPrompt)
}

func TestAnswerPropagatesErrors(t *testing.T) {
	storeErr := fmt.Errorf("search: %w", vectorstore.ErrUnavailable)
	_, err := NewRAGService(&fakeRetriever{err: storeErr}, &fakeLLM{}, "m", 3).Answer(context.Background(), "q")
	assert.True(t, errors.Is(err, vectorstore.ErrUnavailable))

	upstream := &llm.UpstreamError{Op: "generate", StatusCode: 500, Err: errors.New("boom")}
	_, err = NewRAGService(&fakeRetriever{}, &fakeLLM{err: upstream}, "m", 3).Answer(context.Background(), "q")
	var target *llm.UpstreamError
	assert.True(t, errors.As(err, &target))
}

func TestStreamForwardsFragments(t *testing.T) {
	gen := &fakeLLM{fragments: []string{"a", "b", "c"}}
	svc := NewRAGService(&fakeRetriever{records: records("ctx")}, gen, "m", 3)

	var got []string
	require.NoError(t, svc.Stream(context.Background(), "q", func(s string) error {
		got = append(got, s)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, "q ctx", gen.lastPrompt)
}

func TestRetrieveHonoursExplicitK(t *testing.T) {
	store := &fakeRetriever{records: records("1", "2", "3", "4", "5")}
	svc := NewRAGService(store, &fakeLLM{}, "m", 3)

	got, err := svc.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = svc.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

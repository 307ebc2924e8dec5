package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/internal/vectorstore"
)

type fakeLister struct{ filter vectorstore.Filter }

func (f *fakeLister) List(_ context.Context, filter vectorstore.Filter) ([]model.Record, error) {
	f.filter = filter
	return records("a", "b"), nil
}

func TestListRecordsPassesFilter(t *testing.T) {
	lister := &fakeLister{}
	svc := NewDocumentService(lister, nil, nil, "", nil)

	got, err := svc.ListRecords(context.Background(), vectorstore.Filter{Name: "doc.txt", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "doc.txt", lister.filter.Name)
}

func TestListIndexedWithoutLedger(t *testing.T) {
	_, err := NewDocumentService(&fakeLister{}, nil, nil, "", nil).ListIndexed(context.Background(), "")
	assert.ErrorIs(t, err, ErrLedgerDisabled)
}

func TestUpload(t *testing.T) {
	var gotKey, gotBody string
	upload := func(_ context.Context, key string, r io.Reader, size int64) (int64, error) {
		b, err := io.ReadAll(r)
		gotKey, gotBody = key, string(b)
		return int64(len(b)), err
	}
	supports := func(name string) bool { return strings.HasSuffix(name, ".txt") }
	svc := NewDocumentService(&fakeLister{}, nil, upload, "incoming/", supports)

	res, err := svc.Upload(context.Background(), `C:\tmp\notes.txt`, strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.Name)
	assert.Equal(t, "incoming/notes.txt", gotKey)
	assert.Equal(t, "hello", gotBody)
	assert.EqualValues(t, 5, res.Size)

	_, err = svc.Upload(context.Background(), "image.png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestUploadWithoutStorage(t *testing.T) {
	_, err := NewDocumentService(&fakeLister{}, nil, nil, "", nil).Upload(context.Background(), "a.txt", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrUploadDisabled)
}

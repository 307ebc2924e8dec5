package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func collect(t *testing.T, s Source) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := s.Walk(context.Background(), func(it Item) error {
		data, err := it.Read(context.Background())
		require.NoError(t, err)
		rel, err := filepath.Rel(s.Location(), it.Path)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		assert.Equal(t, filepath.Base(it.Path), it.Name)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestFSWalksRecursively(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":          "A",
		"sub/b.docx":     "B",
		"sub/deep/c.txt": "C",
	})

	got := collect(t, NewFS(root, nil))
	assert.Equal(t, map[string]string{"a.txt": "A", "sub/b.docx": "B", "sub/deep/c.txt": "C"}, got)
}

func TestFSIncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":            "A",
		"b.md":             "B",
		"skip/c.txt":       "C",
		"keep/d.txt":       "D",
		"keep/tmp/e.txt":   "E",
		"keep/tmp/f.draft": "F",
	})

	m := NewMatcher([]string{"*.txt"}, []string{"skip/**", "**/tmp/*"})
	got := collect(t, NewFS(root, m))

	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"a.txt", "keep/d.txt"}, keys)
}

func TestFSMissingRoot(t *testing.T) {
	err := NewFS(filepath.Join(t.TempDir(), "nope"), nil).Walk(context.Background(), func(Item) error { return nil })
	assert.Error(t, err)
}

func TestFSStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "A", "b.txt": "B"})

	stop := assert.AnError
	calls := 0
	err := NewFS(root, nil).Walk(context.Background(), func(Item) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(nil, []string{"**/.git/**", "*.log"})
	assert.True(t, m.Match("docs/readme.txt"))
	assert.False(t, m.Match("repo/.git/config"))
	assert.False(t, m.Match("deep/dir/app.log"))
	assert.True(t, m.ExcludeDir("repo/.git"))
	assert.False(t, m.ExcludeDir("repo/src"))
}

package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMarkdownUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Título\ncontenido"), 0o644))

	text, err := ReadMarkdown(path)
	require.NoError(t, err)
	assert.Equal(t, "# Título\ncontenido", text)
}

func TestReadMarkdownStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, append([]byte{0xef, 0xbb, 0xbf}, []byte("hola")...), 0o644))

	text, err := ReadMarkdown(path)
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
}

func TestReadMarkdownLatin1Fallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	// "instalación" in ISO-8859-1, invalid as UTF-8.
	require.NoError(t, os.WriteFile(path, []byte("instalaci\xf3n"), 0o644))

	text, err := ReadMarkdown(path)
	require.NoError(t, err)
	assert.Equal(t, "instalación", text)
}

func TestListMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "faq"), 0o755))
	for _, name := range []string{"a.md", "faq/b.MD", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := ListMarkdownFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Contains(t, files, filepath.Join(dir, "a.md"))
	assert.Contains(t, files, filepath.Join(dir, "faq", "b.MD"))
}

func TestListMarkdownFilesMissingDir(t *testing.T) {
	_, err := ListMarkdownFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

package vfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textReader(s string, binary bool) *TextReader {
	return NewTextReader(NewPackageHandle("t", []byte(s), 0, binary))
}

func TestTextReaderReadLine(t *testing.T) {
	t.Parallel()

	r := textReader("first\r\nsecond\n\nlast", false)
	for _, want := range []string{"first", "second", "", "last"} {
		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTextReaderReadString(t *testing.T) {
	t.Parallel()

	r := textReader("abc\x00def", true)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	s, err = r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "def", s)
}

func TestTextReaderTokens(t *testing.T) {
	t.Parallel()

	r := textReader("key = value;", false)
	key, err := r.ReadUntil(" =")
	require.NoError(t, err)
	assert.Equal(t, "key", key)

	b, ok := r.FindFirstNotOf(" =")
	require.True(t, ok)
	assert.Equal(t, byte('v'), b)

	rest, err := r.ReadUntil(";")
	require.NoError(t, err)
	assert.Equal(t, "alue", rest)

	b, ok = r.FindFirstOf(";")
	require.True(t, ok)
	assert.Equal(t, byte(';'), b)

	_, ok = r.FindFirstOf("x")
	assert.False(t, ok)
}

func TestTextReaderComments(t *testing.T) {
	t.Parallel()

	const src = "a // note\nb /* block\nstill */c\n"

	t.Run("stripped in text mode", func(t *testing.T) {
		t.Parallel()
		r := textReader(src, false)
		r.IgnoreComments("//", "")
		r.IgnoreComments("/*", "*/")
		r.IgnoreComments("", "x")

		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "a ", line)
		line, err = r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "b c", line)
	})

	t.Run("kept in binary mode", func(t *testing.T) {
		t.Parallel()
		r := textReader(src, true)
		r.IgnoreComments("//", "")
		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "a // note", line)
	})

	t.Run("lone slash is not a comment", func(t *testing.T) {
		t.Parallel()
		r := textReader("a/b", false)
		r.IgnoreComments("//", "")
		s, err := r.ReadUntil("\n")
		require.NoError(t, err)
		assert.Equal(t, "a/b", s)
	})
}

func TestTextReaderCommentEndOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start string
		end   string
		src   string
		want  string
	}{
		{"repeated prefix", "<", "aab", "x<aaabY\n", "xY"},
		{"star run", "/*", "*/", "x/* a **/Y\n", "xY"},
		{"periodic end", "[", "abab", "x[abaababY\n", "xY"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := textReader(tt.src, false)
			r.IgnoreComments(tt.start, tt.end)
			line, err := r.ReadLine()
			require.NoError(t, err)
			assert.Equal(t, tt.want, line)
		})
	}
}

func TestPrefixTable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int{0, 1, 0}, prefixTable("aab"))
	assert.Equal(t, []int{0, 0, 1, 2}, prefixTable("abab"))
	assert.Empty(t, prefixTable(""))
}

package vfs

import (
	"errors"
	"io"
	"strings"
)

type commentSpec struct {
	start string
	end   string
}

// TextReader adds line and token oriented reads on top of a FileHandle.
// Comment markers registered with IgnoreComments are stripped from the
// stream, but only for read handles opened in text mode; binary and write
// handles are read verbatim.
type TextReader struct {
	h        FileHandle
	comments []commentSpec
	strip    bool
}

// NewTextReader wraps h. The reader shares h's cursor.
func NewTextReader(h FileHandle) *TextReader {
	return &TextReader{
		h:     h,
		strip: !h.Binary() && !h.Writable(),
	}
}

// Handle returns the wrapped handle.
func (r *TextReader) Handle() FileHandle { return r.h }

// IgnoreComments registers a comment delimited by start and end. An empty
// end means the comment runs to the end of the line; the newline itself is
// kept. An empty start is ignored.
func (r *TextReader) IgnoreComments(start, end string) {
	if start == "" {
		return
	}
	r.comments = append(r.comments, commentSpec{start: start, end: end})
}

// next returns the next byte with comments removed.
func (r *TextReader) next() (byte, error) {
	for {
		b, err := r.h.ReadByte()
		if err != nil || !r.strip {
			return b, err
		}
		c, ok := r.commentAt(b)
		if !ok {
			return b, nil
		}
		if c.end == "" {
			if err := r.skipPast("\n"); err != nil {
				return 0, err
			}
			// keep the line break so line reads still terminate
			return '\n', nil
		}
		if err := r.skipPast(c.end); err != nil {
			return 0, err
		}
	}
}

// commentAt reports whether b starts a registered comment. On a match the
// rest of the start marker is consumed; otherwise the cursor is unchanged.
func (r *TextReader) commentAt(b byte) (commentSpec, bool) {
	for _, c := range r.comments {
		if c.start[0] != b {
			continue
		}
		if len(c.start) == 1 || r.matchAhead(c.start[1:]) {
			return c, true
		}
	}
	return commentSpec{}, false
}

func (r *TextReader) matchAhead(s string) bool {
	pos := r.h.Tell()
	for i := 0; i < len(s); i++ {
		b, err := r.h.ReadByte()
		if err != nil || b != s[i] {
			r.h.Seek(pos, io.SeekStart)
			return false
		}
	}
	return true
}

// skipPast consumes bytes up to and including the delimiter. A mismatch
// falls back to the longest delimiter prefix that is still matched.
func (r *TextReader) skipPast(delim string) error {
	fail := prefixTable(delim)
	matched := 0
	for matched < len(delim) {
		b, err := r.h.ReadByte()
		if err != nil {
			return err
		}
		for matched > 0 && b != delim[matched] {
			matched = fail[matched-1]
		}
		if b == delim[matched] {
			matched++
		}
	}
	return nil
}

// prefixTable returns, for every prefix s[:i+1], the length of its longest
// proper prefix that is also a suffix.
func prefixTable(s string) []int {
	fail := make([]int, len(s))
	k := 0
	for i := 1; i < len(s); i++ {
		for k > 0 && s[i] != s[k] {
			k = fail[k-1]
		}
		if s[i] == s[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}

func (r *TextReader) unread() {
	r.h.Seek(-1, io.SeekCurrent)
}

// ReadLine reads up to the next newline, which is consumed but not
// returned. A trailing carriage return is dropped. io.EOF is returned only
// when nothing was read.
func (r *TextReader) ReadLine() (string, error) {
	return r.readTo('\n', true)
}

// ReadString reads a NUL terminated string. The terminator is consumed.
func (r *TextReader) ReadString() (string, error) {
	return r.readTo(0, false)
}

func (r *TextReader) readTo(delim byte, trimCR bool) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				break
			}
			return sb.String(), err
		}
		if b == delim {
			break
		}
		sb.WriteByte(b)
	}
	s := sb.String()
	if trimCR {
		s = strings.TrimSuffix(s, "\r")
	}
	return s, nil
}

// ReadUntil reads until one of the bytes in set. The matching byte is left
// unread. Reaching the end of the file is not an error.
func (r *TextReader) ReadUntil(set string) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		if strings.IndexByte(set, b) >= 0 {
			r.unread()
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// FindFirstOf consumes bytes up to and including the first one in set and
// returns it. ok is false at the end of the file.
func (r *TextReader) FindFirstOf(set string) (byte, bool) {
	for {
		b, err := r.next()
		if err != nil {
			return 0, false
		}
		if strings.IndexByte(set, b) >= 0 {
			return b, true
		}
	}
}

// FindFirstNotOf consumes bytes up to and including the first one that is
// not in set and returns it.
func (r *TextReader) FindFirstNotOf(set string) (byte, bool) {
	for {
		b, err := r.next()
		if err != nil {
			return 0, false
		}
		if strings.IndexByte(set, b) < 0 {
			return b, true
		}
	}
}

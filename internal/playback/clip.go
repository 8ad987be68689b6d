package playback

import "strings"

// Clip references a background video by filename or URL. References may
// carry a cache-busting query suffix (e.g. "?t=169..."), which is not part
// of the clip's identity.
type Clip string

// Name returns the reference without any query suffix.
func (c Clip) Name() string {
	if i := strings.IndexByte(string(c), '?'); i >= 0 {
		return string(c[:i])
	}
	return string(c)
}

// Same reports whether two references point at the same underlying clip,
// ignoring query suffixes.
func (c Clip) Same(other Clip) bool {
	return c.Name() == other.Name()
}

// IsZero reports whether the reference is empty.
func (c Clip) IsZero() bool {
	return c == ""
}

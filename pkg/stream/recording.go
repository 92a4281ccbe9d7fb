package stream

// Recording is a transparent pass-through overlay that appends every byte
// it delivers to an internal log. Only reads made through the Recording are
// logged, so a Bounded sub-stream is layered on top of it: running the
// content parser over the Bounded, then draining any unread bytes
// (Bounded.SkipToEnd), logs the exact content octets of an element —
// including bytes the content parser chose not to consume.
type Recording struct {
	inner Stream
	log   []byte
}

// NewRecording wraps inner, recording everything read through it.
func NewRecording(inner Stream) *Recording {
	return &Recording{inner: inner}
}

func (r *Recording) ReadByte() (byte, error) {
	b, err := r.inner.ReadByte()
	if err != nil {
		return 0, err
	}
	r.log = append(r.log, b)
	return b, nil
}

func (r *Recording) ReadN(k int) ([]byte, error) {
	chunk, err := r.inner.ReadN(k)
	if len(chunk) > 0 {
		r.log = append(r.log, chunk...)
	}
	return chunk, err
}

func (r *Recording) RemainingHint() (int, bool) { return r.inner.RemainingHint() }
func (r *Recording) More() bool                 { return r.inner.More() }

// Log returns the bytes recorded so far. The returned slice is owned by
// the caller's copy; further reads do not mutate it.
func (r *Recording) Log() []byte {
	out := make([]byte, len(r.log))
	copy(out, r.log)
	return out
}

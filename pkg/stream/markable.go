package stream

// Markable adds one-shot mark/restore/commit lookahead to an inner Stream:
// the parser marks before an attempt that may fail, invokes a candidate
// parser, and on failure restores to the mark. Only one mark may be
// outstanding at a time.
type Markable struct {
	inner   Stream
	marked  bool
	buf     []byte // bytes consumed from inner since the mark, replayed on Restore
	replay  int    // read cursor into buf (reset to 0 by Mark, Restore and Commit)
}

// NewMarkable wraps inner with mark/restore/commit support.
func NewMarkable(inner Stream) *Markable {
	return &Markable{inner: inner}
}

// Mark begins buffering consumed bytes so a subsequent Restore can rewind
// to this point. Fails if a mark is already outstanding. Any bytes left
// over from a prior Restore that have not yet been replayed (m.replay <
// len(m.buf)) are still ahead of the caller's current read position, so
// they carry over as the start of the new mark's buffer instead of being
// discarded.
func (m *Markable) Mark() error {
	if m.marked {
		return ErrAlreadyMarked
	}
	m.marked = true
	m.buf = m.buf[m.replay:]
	m.replay = 0
	return nil
}

// Restore rewinds to the last Mark; bytes consumed since then are replayed
// on subsequent reads.
func (m *Markable) Restore() error {
	if !m.marked {
		return ErrNotMarked
	}
	m.marked = false
	m.replay = 0
	// buf retains what was recorded; it is replayed before falling
	// through to inner again.
	return nil
}

// Commit drops the outstanding mark; no rewind is possible afterward.
func (m *Markable) Commit() error {
	if !m.marked {
		return ErrNotMarked
	}
	m.marked = false
	m.buf = nil
	m.replay = 0
	return nil
}

func (m *Markable) ReadByte() (byte, error) {
	if m.replay < len(m.buf) {
		b := m.buf[m.replay]
		m.replay++
		return b, nil
	}
	b, err := m.inner.ReadByte()
	if err != nil {
		return 0, err
	}
	if m.marked {
		// b is returned directly below, not via the replay branch above,
		// so it must be marked as already delivered or the next read
		// would replay it a second time instead of advancing.
		m.buf = append(m.buf, b)
		m.replay = len(m.buf)
	}
	return b, nil
}

func (m *Markable) ReadN(k int) ([]byte, error) {
	if k <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, k)

	if m.replay < len(m.buf) {
		avail := m.buf[m.replay:]
		take := k
		if take > len(avail) {
			take = len(avail)
		}
		out = append(out, avail[:take]...)
		m.replay += take
		k -= take
	}

	if k > 0 {
		chunk, err := m.inner.ReadN(k)
		if len(chunk) > 0 {
			out = append(out, chunk...)
			if m.marked {
				// Same reasoning as ReadByte: chunk is already in out,
				// so mark it delivered rather than leaving it to replay.
				m.buf = append(m.buf, chunk...)
				m.replay = len(m.buf)
			}
		}
		if len(out) == 0 && err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Markable) RemainingHint() (int, bool) {
	n, ok := m.inner.RemainingHint()
	if !ok {
		return 0, false
	}
	return n + (len(m.buf) - m.replay), true
}

func (m *Markable) More() bool {
	if m.replay < len(m.buf) {
		return true
	}
	return m.inner.More()
}

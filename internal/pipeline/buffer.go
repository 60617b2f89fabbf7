package pipeline

// ContentBuffer holds one task's fully synthesized text and the cursor of
// how much has been revealed. Invariant: Displayed() == full[:position].
// Positions count runes so multi-byte content reveals cleanly.
//
// ContentBuffer is mutated only by the session's tick step.
type ContentBuffer struct {
	full []rune
	pos  int
}

// NewContentBuffer wraps fully synthesized text with the cursor at zero.
func NewContentBuffer(full string) *ContentBuffer {
	return &ContentBuffer{full: []rune(full)}
}

// Advance reveals up to n more runes and returns the newly revealed chunk.
// Advancing an exhausted buffer returns the empty string.
func (b *ContentBuffer) Advance(n int) string {
	if n <= 0 || b.pos >= len(b.full) {
		return ""
	}
	end := b.pos + n
	if end > len(b.full) {
		end = len(b.full)
	}
	chunk := string(b.full[b.pos:end])
	b.pos = end
	return chunk
}

// Displayed returns the revealed prefix.
func (b *ContentBuffer) Displayed() string {
	return string(b.full[:b.pos])
}

// Full returns the complete synthesized text.
func (b *ContentBuffer) Full() string {
	return string(b.full)
}

// Position returns the cursor in runes.
func (b *ContentBuffer) Position() int { return b.pos }

// Len returns the total length in runes.
func (b *ContentBuffer) Len() int { return len(b.full) }

// Remaining returns the number of unrevealed runes.
func (b *ContentBuffer) Remaining() int { return len(b.full) - b.pos }

// Exhausted reports whether all content has been revealed.
func (b *ContentBuffer) Exhausted() bool { return b.pos >= len(b.full) }

// Progress returns the reveal percentage in [0,100]. An empty buffer is
// complete by definition.
func (b *ContentBuffer) Progress() float64 {
	if len(b.full) == 0 {
		return 100
	}
	return float64(b.pos) / float64(len(b.full)) * 100
}

// Package carousel tracks the position of a one-card-at-a-time list that is
// stepped with arrow keys or swiped by dragging.
package carousel

// DefaultSwipeThreshold is the drag distance, in pixels, a swipe must
// exceed to change cards.
const DefaultSwipeThreshold = 50

// Model is the carousel position and any drag in progress. The zero value
// is an empty carousel; use New.
type Model struct {
	count     int
	index     int
	threshold int

	dragging bool
	startX   int
	currentX int
}

// New returns a carousel over count cards at index 0. A non-positive
// threshold selects DefaultSwipeThreshold.
func New(count, threshold int) Model {
	if threshold <= 0 {
		threshold = DefaultSwipeThreshold
	}
	if count < 0 {
		count = 0
	}
	return Model{count: count, threshold: threshold}
}

// Index returns the current card, always within [0, Count-1] when Count>0.
func (m Model) Index() int { return m.index }

// Count returns the number of cards.
func (m Model) Count() int { return m.count }

// Threshold returns the swipe threshold in pixels.
func (m Model) Threshold() int { return m.threshold }

// Dragging reports whether a drag is in progress.
func (m Model) Dragging() bool { return m.dragging }

// Offset is the live drag displacement in pixels: negative while dragging
// left. It is zero when no drag is in progress.
func (m Model) Offset() int {
	if !m.dragging {
		return 0
	}
	return m.currentX - m.startX
}

// AtStart reports whether Prev would be a no-op.
func (m Model) AtStart() bool { return m.index == 0 }

// AtEnd reports whether Next would be a no-op.
func (m Model) AtEnd() bool { return m.count == 0 || m.index == m.count-1 }

// SetCount replaces the card count, clamping the index.
func (m *Model) SetCount(count int) {
	if count < 0 {
		count = 0
	}
	m.count = count
	m.index = m.clamp(m.index)
}

// Next advances one card and reports whether the index moved.
func (m *Model) Next() bool {
	return m.moveTo(m.index + 1)
}

// Prev steps back one card and reports whether the index moved.
func (m *Model) Prev() bool {
	return m.moveTo(m.index - 1)
}

// TouchStart begins a drag at x.
func (m *Model) TouchStart(x int) {
	m.dragging = true
	m.startX = x
	m.currentX = x
}

// TouchMove tracks the drag to x. Moves without a TouchStart are ignored.
func (m *Model) TouchMove(x int) {
	if !m.dragging {
		return
	}
	m.currentX = x
}

// TouchEnd finishes the drag. A leftward drag farther than the threshold
// advances, a rightward one steps back, and anything shorter snaps back.
// It reports whether the index moved.
func (m *Model) TouchEnd() bool {
	if !m.dragging {
		return false
	}
	distance := m.startX - m.currentX
	m.dragging = false
	m.startX, m.currentX = 0, 0

	switch {
	case distance > m.threshold:
		return m.Next()
	case distance < -m.threshold:
		return m.Prev()
	default:
		return false
	}
}

// Cancel abandons a drag without moving.
func (m *Model) Cancel() {
	m.dragging = false
	m.startX, m.currentX = 0, 0
}

func (m *Model) moveTo(i int) bool {
	next := m.clamp(i)
	if next == m.index {
		return false
	}
	m.index = next
	return true
}

func (m Model) clamp(i int) int {
	if m.count == 0 || i < 0 {
		return 0
	}
	if i > m.count-1 {
		return m.count - 1
	}
	return i
}

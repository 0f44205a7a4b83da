package ui

import "strings"

// sparkGlyphs are the block characters used for sparkline bars, from
// lowest to highest.
var sparkGlyphs = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a ring buffer of throughput samples and renders the
// most recent ones as a row of block characters.
type Sparkline struct {
	samples []float64
	head    int
	count   int
	max     float64
}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends a sample, evicting the oldest once full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++

	if value > s.max {
		s.max = value
	} else if s.count%len(s.samples) == 0 {
		// The old maximum may have rotated out of the buffer.
		s.recalcMax()
	}
}

// Render draws the newest samples, oldest on the left. A width of zero
// or beyond capacity renders the full buffer; positions without a
// sample yet are left blank.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(sparkGlyphs[0]), width)
	}

	var b strings.Builder
	b.Grow(width * 3)

	have := min(s.count, len(s.samples))
	shown := min(have, width)
	start := s.head - shown
	if start < 0 {
		start += len(s.samples)
	}

	for i := 0; i < shown; i++ {
		b.WriteRune(s.glyph(s.samples[(start+i)%len(s.samples)]))
	}
	for i := shown; i < width; i++ {
		b.WriteRune(' ')
	}
	return b.String()
}

// Clear resets the buffer.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

func (s *Sparkline) glyph(value float64) rune {
	if s.max <= 0 {
		return sparkGlyphs[0]
	}
	i := int(value / s.max * float64(len(sparkGlyphs)-1))
	if i < 0 {
		i = 0
	}
	if i >= len(sparkGlyphs) {
		i = len(sparkGlyphs) - 1
	}
	return sparkGlyphs[i]
}

func (s *Sparkline) recalcMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
}

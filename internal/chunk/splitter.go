package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment is a piece of split text plus its byte offset in the original
// input, so callers can recover exact line spans.
type Segment struct {
	Text  string
	Start int // byte offset of Text in the input
}

// Splitter cuts text into size-bounded, overlapping segments. It walks its
// separator list in order, splits on the first pattern present in the text,
// merges the parts back up to the chunk size, and recurses with the rest of
// the list into parts that are still too large. A separator stays glued to
// the front of the part it introduces, which keeps every segment an exact
// substring of the input. Sizes are measured in runes.
type Splitter struct {
	chunkSize int
	overlap   int
	seps      []string
	patterns  map[string]*regexp.Regexp
}

// NewSplitter compiles the separator patterns. Separators are regular
// expressions; the empty separator marks the per-character terminal split
// and every practical list ends with it. The overlap must stay below the
// chunk size.
func NewSplitter(separators []string, chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if len(separators) == 0 {
		separators = genericSeparators
	}

	patterns := make(map[string]*regexp.Regexp, len(separators))
	for _, s := range separators {
		if s == "" {
			continue
		}
		patterns[s] = regexp.MustCompile(s)
	}

	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		seps:      separators,
		patterns:  patterns,
	}
}

// Split returns the segments of text in order. Segment text is stripped of
// surrounding whitespace and offsets account for the trim, so each segment's
// text equals text[seg.Start : seg.Start+len(seg.Text)].
func (s *Splitter) Split(text string) []Segment {
	if text == "" {
		return nil
	}
	return s.split(Segment{Text: text, Start: 0}, s.seps)
}

func (s *Splitter) split(p Segment, seps []string) []Segment {
	sep, rest := s.pickSeparator(p.Text, seps)

	var parts []Segment
	if sep == "" {
		parts = splitRunes(p)
	} else {
		parts = s.splitBySeparator(p, sep)
	}

	var out []Segment
	var pending []Segment
	for _, part := range parts {
		if runeLen(part.Text) < s.chunkSize {
			pending = append(pending, part)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			// No finer separator available; emit oversize as-is.
			out = append(out, part)
		} else {
			out = append(out, s.split(part, rest)...)
		}
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// pickSeparator returns the first separator present in text and the
// remainder of the list for recursion. The empty separator always applies.
func (s *Splitter) pickSeparator(text string, seps []string) (string, []string) {
	sep := seps[len(seps)-1]
	var rest []string
	for i, cand := range seps {
		if cand == "" {
			return "", nil
		}
		if s.patterns[cand].MatchString(text) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}
	return sep, rest
}

// splitBySeparator cuts p at the start of each pattern match. The resulting
// parts partition p exactly.
func (s *Splitter) splitBySeparator(p Segment, sep string) []Segment {
	locs := s.patterns[sep].FindAllStringIndex(p.Text, -1)
	if len(locs) == 0 {
		return []Segment{p}
	}

	cuts := make([]int, 0, len(locs)+2)
	cuts = append(cuts, 0)
	for _, loc := range locs {
		if loc[0] != 0 {
			cuts = append(cuts, loc[0])
		}
	}
	cuts = append(cuts, len(p.Text))

	parts := make([]Segment, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		if cuts[i] == cuts[i+1] {
			continue
		}
		parts = append(parts, Segment{Text: p.Text[cuts[i]:cuts[i+1]], Start: p.Start + cuts[i]})
	}
	return parts
}

// splitRunes is the terminal split: one part per rune.
func splitRunes(p Segment) []Segment {
	parts := make([]Segment, 0, len(p.Text))
	for i, r := range p.Text {
		parts = append(parts, Segment{Text: p.Text[i : i+utf8.RuneLen(r)], Start: p.Start + i})
	}
	return parts
}

// merge combines consecutive small parts into segments close to the chunk
// size. When a segment fills up, the window keeps a tail of at most overlap
// runes so neighboring segments share context.
func (s *Splitter) merge(parts []Segment) []Segment {
	var out []Segment
	var window []Segment
	total := 0

	for _, part := range parts {
		plen := runeLen(part.Text)
		if total+plen > s.chunkSize && len(window) > 0 {
			if seg, ok := joinSegments(window); ok {
				out = append(out, seg)
			}
			for total > s.overlap || (total+plen > s.chunkSize && total > 0) {
				total -= runeLen(window[0].Text)
				window = window[1:]
			}
		}
		window = append(window, part)
		total += plen
	}

	if seg, ok := joinSegments(window); ok {
		out = append(out, seg)
	}
	return out
}

// joinSegments concatenates a run of adjacent parts and strips surrounding
// whitespace, adjusting the offset for the leading trim. Whitespace-only
// runs are dropped.
func joinSegments(parts []Segment) (Segment, bool) {
	if len(parts) == 0 {
		return Segment{}, false
	}

	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	joined := b.String()

	lead := len(joined) - len(strings.TrimLeftFunc(joined, unicode.IsSpace))
	trimmed := strings.TrimSpace(joined)
	if trimmed == "" {
		return Segment{}, false
	}
	return Segment{Text: trimmed, Start: parts[0].Start + lead}, true
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

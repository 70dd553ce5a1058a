package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultSize    = 800
	defaultOverlap = 100
)

// Splitter cuts text into pieces of roughly Size runes, snapping to sentence
// boundaries and repeating up to Overlap runes of trailing sentences at the
// start of the next piece.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. Non-positive size falls back to the default,
// overlap is clamped to [0, size/2].
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = defaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split returns the pieces of text in order. Blank input yields nil.
func (s *Splitter) Split(text string) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		out     []string
		current []string
		length  int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, strings.Join(current, " "))
		current, length = s.tail(current)
	}

	for _, sent := range sentences {
		n := utf8.RuneCountInString(sent)
		if n > s.size {
			flush()
			current, length = nil, 0
			out = append(out, hardSplit(sent, s.size)...)
			continue
		}
		if length > 0 && length+n+1 > s.size {
			flush()
			// Overlap can leave no room for the next sentence.
			if length+n+1 > s.size {
				current, length = nil, 0
			}
		}
		current = append(current, sent)
		if length > 0 {
			length++
		}
		length += n
	}
	if length > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// tail keeps the trailing sentences of a flushed piece that fit in the overlap budget.
func (s *Splitter) tail(sentences []string) ([]string, int) {
	if s.overlap == 0 {
		return nil, 0
	}
	var (
		kept   []string
		length int
	)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		extra := n
		if length > 0 {
			extra++
		}
		if length+extra > s.overlap {
			break
		}
		kept = append([]string{sentences[i]}, kept...)
		length += extra
	}
	return kept, length
}

func hardSplit(sentence string, size int) []string {
	runes := []rune(sentence)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// Sentences splits text after ASCII and CJK sentence terminators and at line
// breaks. Empty sentences are dropped and the rest are trimmed.
func Sentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	emit := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			emit()
			continue
		}
		b.WriteRune(r)
		if isTerminator(r) {
			// Keep runs like "?!" or "..." together.
			if i+1 < len(runes) && isTerminator(runes[i+1]) {
				continue
			}
			emit()
		}
	}
	emit()
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '．':
		return true
	}
	return false
}

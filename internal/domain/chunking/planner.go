// Package chunking splits oversized text into ordered chunks on paragraph
// boundaries.
package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// paragraphBreak matches one or more blank (or whitespace only) lines.
var paragraphBreak = regexp.MustCompile(`\r?\n(?:[ \t]*\r?\n)+`)

// Chunk is one contiguous slice of the source. Separator is the paragraph break
// that followed the chunk in the source, empty for the last chunk.
type Chunk struct {
	Text      string
	Separator string
}

// Plan is the ordered list of chunks derived from one input.
type Plan []Chunk

// Texts returns the chunk texts in order.
func (p Plan) Texts() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Text
	}
	return out
}

// Join reassembles the source text.
func (p Plan) Join() string {
	var b strings.Builder
	for _, c := range p {
		b.WriteString(c.Text)
		b.WriteString(c.Separator)
	}
	return b.String()
}

// Split plans text into chunks of at most target characters. Paragraphs are
// packed greedily and never split, so a chunk only exceeds target when it holds
// a single paragraph that is larger than target on its own.
func Split(text string, target int) Plan {
	if target <= 0 || utf8.RuneCountInString(text) <= target {
		return Plan{{Text: text}}
	}

	paras, seps := paragraphs(text)

	var (
		plan    Plan
		cur     strings.Builder
		curLen  int
		started bool
		pending string
	)
	for i, p := range paras {
		pLen := utf8.RuneCountInString(p)
		switch {
		case !started:
			cur.WriteString(p)
			curLen = pLen
			started = true
		case curLen == 0 || curLen+utf8.RuneCountInString(pending)+pLen <= target:
			cur.WriteString(pending)
			cur.WriteString(p)
			curLen += utf8.RuneCountInString(pending) + pLen
		default:
			plan = append(plan, Chunk{Text: cur.String(), Separator: pending})
			cur.Reset()
			cur.WriteString(p)
			curLen = pLen
		}
		pending = seps[i]
	}
	if cur.Len() > 0 {
		plan = append(plan, Chunk{Text: cur.String(), Separator: pending})
	}
	return plan
}

// paragraphs returns the paragraph texts and, for each, the break that follows it.
func paragraphs(text string) ([]string, []string) {
	locs := paragraphBreak.FindAllStringIndex(text, -1)
	paras := make([]string, 0, len(locs)+1)
	seps := make([]string, 0, len(locs)+1)
	prev := 0
	for _, loc := range locs {
		paras = append(paras, text[prev:loc[0]])
		seps = append(seps, text[loc[0]:loc[1]])
		prev = loc[1]
	}
	paras = append(paras, text[prev:])
	seps = append(seps, "")
	return paras, seps
}

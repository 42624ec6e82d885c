// Package chunker splits document text into bounded segments for
// embedding and lexical indexing. Splitting is deterministic: the same
// text always yields the same segments with the same hashes, which is
// what makes chunk reuse by text hash possible.
package chunker

import (
	"fmt"
	"strings"

	"github.com/haven-labs/haven/internal/core/domain"
)

// DefaultMaxSize is the default segment size ceiling in bytes.
const DefaultMaxSize = 1200

// DefaultMinSize is the default floor below which a trailing segment is
// merged into its predecessor, avoiding degenerate tiny chunks.
const DefaultMinSize = 200

// Segment is one ordered piece of a document's text.
type Segment struct {
	// Text is the segment content.
	Text string

	// TextHash is the content hash of Text.
	TextHash string

	// Ordinal is the segment's position within the document.
	Ordinal int

	// SourceRef cites the byte range in the source text, "chars=a-b".
	SourceRef string
}

// Chunker splits text on paragraph and sentence boundaries under a
// size ceiling.
type Chunker struct {
	maxSize int
	minSize int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxSize sets the segment size ceiling in bytes.
func WithMaxSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithMinSize sets the trailing-segment merge floor in bytes.
func WithMinSize(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minSize = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		minSize: DefaultMinSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minSize >= c.maxSize {
		c.minSize = c.maxSize / 4
	}
	return c
}

// Split produces the ordered segments of text. Whitespace-only text
// yields no segments.
func (c *Chunker) Split(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := c.boundaries(text)
	segments := make([]Segment, 0, len(pieces))
	for _, p := range pieces {
		segments = append(segments, Segment{
			Text:      p.text,
			TextHash:  domain.HashText(p.text),
			Ordinal:   len(segments),
			SourceRef: fmt.Sprintf("chars=%d-%d", p.start, p.end),
		})
	}
	return segments
}

// piece is an intermediate span with byte offsets into the source.
type piece struct {
	text       string
	start, end int
}

// boundaries walks the text accumulating paragraph-sized pieces,
// falling back to sentence boundaries when a paragraph exceeds the
// ceiling. A trailing piece below the floor is merged backwards.
func (c *Chunker) boundaries(text string) []piece {
	var out []piece

	for _, para := range splitKeepOffsets(text, "\n\n") {
		if strings.TrimSpace(para.text) == "" {
			continue
		}
		if len(para.text) <= c.maxSize {
			out = appendOrExtend(out, para, c.maxSize)
			continue
		}

		// Paragraph over the ceiling: pack sentences greedily.
		current := piece{start: para.start, end: para.start}
		for _, sent := range splitSentences(para.text, para.start) {
			if current.text != "" && len(current.text)+len(sent.text)+1 > c.maxSize {
				out = append(out, current)
				current = piece{start: sent.start, end: sent.start}
			}
			if current.text == "" {
				current = sent
			} else {
				current.text = current.text + " " + sent.text
				current.end = sent.end
			}
			// A single oversized sentence is hard-wrapped at the ceiling.
			for len(current.text) > c.maxSize {
				head := current.text[:c.maxSize]
				out = append(out, piece{text: head, start: current.start, end: current.start + c.maxSize})
				current = piece{
					text:  current.text[c.maxSize:],
					start: current.start + c.maxSize,
					end:   current.end,
				}
			}
		}
		if strings.TrimSpace(current.text) != "" {
			out = append(out, current)
		}
	}

	// Merge an undersized trailing piece into its predecessor.
	if len(out) >= 2 && len(out[len(out)-1].text) < c.minSize {
		last := out[len(out)-1]
		prev := &out[len(out)-2]
		if len(prev.text)+len(last.text)+1 <= c.maxSize*2 {
			prev.text = prev.text + "\n\n" + last.text
			prev.end = last.end
			out = out[:len(out)-1]
		}
	}

	return out
}

// appendOrExtend appends para as a new piece, or folds it into the
// previous piece when both fit comfortably under the ceiling.
func appendOrExtend(out []piece, para piece, maxSize int) []piece {
	if len(out) > 0 {
		prev := &out[len(out)-1]
		if len(prev.text)+len(para.text)+2 <= maxSize {
			prev.text = prev.text + "\n\n" + para.text
			prev.end = para.end
			return out
		}
	}
	return append(out, para)
}

// splitKeepOffsets splits text on sep, keeping byte offsets and
// trimming surrounding whitespace from each part.
func splitKeepOffsets(text, sep string) []piece {
	var out []piece
	start := 0
	for {
		idx := strings.Index(text[start:], sep)
		var raw string
		var end int
		if idx < 0 {
			raw = text[start:]
			end = len(text)
		} else {
			raw = text[start : start+idx]
			end = start + idx
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			out = append(out, piece{
				text:  trimmed,
				start: start + lead,
				end:   start + lead + len(trimmed),
			})
		}

		if idx < 0 {
			break
		}
		start = end + len(sep)
	}
	return out
}

// splitSentences splits a paragraph into sentence pieces with offsets
// relative to the full document (base is the paragraph's start).
func splitSentences(para string, base int) []piece {
	var out []piece
	start := 0
	for i, r := range para {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			raw := para[start : i+1]
			trimmed := strings.TrimSpace(raw)
			if trimmed != "" {
				lead := strings.Index(raw, trimmed)
				out = append(out, piece{
					text:  trimmed,
					start: base + start + lead,
					end:   base + start + lead + len(trimmed),
				})
			}
			start = i + 1
		}
	}
	if raw := para[start:]; strings.TrimSpace(raw) != "" {
		trimmed := strings.TrimSpace(raw)
		lead := strings.Index(raw, trimmed)
		out = append(out, piece{
			text:  trimmed,
			start: base + start + lead,
			end:   base + start + lead + len(trimmed),
		})
	}
	return out
}

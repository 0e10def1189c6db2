package chunker

import (
	"strings"
	"unicode"

	"github.com/poiesic/corpus/core"
)

// Strategy selects how text is segmented before chunks are accumulated.
type Strategy string

const (
	// StrategyRecursive tries separators in priority order, recursing into
	// oversize buffers with the next separator. Recommended default.
	StrategyRecursive Strategy = "recursive"
	// StrategyParagraph accumulates paragraph-delimited segments.
	StrategyParagraph Strategy = "paragraph"
	// StrategySentence accumulates sentence-delimited segments.
	StrategySentence Strategy = "sentence"
)

// Separator priority for the recursive strategy. The empty separator means
// fixed-width windowing at character level, which guarantees termination.
var recursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

const (
	defaultChunkSizeTokens = 512
	defaultOverlapTokens   = 100
	defaultCharsPerToken   = 4.0
)

// Chunker splits normalized text into overlapping, bounded chunks.
// It is pure and stateless; a single instance is safe for concurrent use.
type Chunker struct {
	chunkSizeTokens int
	overlapTokens   int
	charsPerToken   float64

	sizeChars    int
	overlapChars int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(tokens int) Option {
	return func(c *Chunker) {
		if tokens > 0 {
			c.chunkSizeTokens = tokens
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(tokens int) Option {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// WithCharsPerToken sets the character-per-token estimation ratio.
func WithCharsPerToken(ratio float64) Option {
	return func(c *Chunker) {
		if ratio > 0 {
			c.charsPerToken = ratio
		}
	}
}

// New creates a Chunker. Defaults: 512-token chunks, 100-token overlap,
// 4 chars per token. Overlap is clamped below the chunk size.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSizeTokens: defaultChunkSizeTokens,
		overlapTokens:   defaultOverlapTokens,
		charsPerToken:   defaultCharsPerToken,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.overlapTokens >= c.chunkSizeTokens {
		c.overlapTokens = c.chunkSizeTokens / 2
	}

	c.sizeChars = int(float64(c.chunkSizeTokens) * c.charsPerToken)
	if c.sizeChars < 1 {
		c.sizeChars = 1
	}
	c.overlapChars = int(float64(c.overlapTokens) * c.charsPerToken)
	if c.overlapChars >= c.sizeChars {
		c.overlapChars = c.sizeChars / 2
	}

	return c
}

// EstimateTokens estimates the token count of text from its rune length.
func (c *Chunker) EstimateTokens(text string) int {
	return int(float64(len([]rune(text))) / c.charsPerToken)
}

// Chunk splits text into an ordered sequence of chunks. Offsets are rune
// offsets into the trimmed input. Empty or whitespace-only input yields nil;
// input within the size budget yields a single chunk.
//
// Invariants: chunk indices are contiguous from 0; every rune of the input is
// covered by at least one chunk; the overlap between consecutive chunks never
// exceeds the configured overlap (plus separator-width slack); whitespace-only
// candidates are dropped.
func (c *Chunker) Chunk(text string, strategy Strategy) []core.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var spans []span

	switch strategy {
	case StrategyParagraph:
		c.accumulate(runes, paragraphSegments(runes), func(start, end int) {
			spans = appendSpan(spans, runes, start, end)
		})
	case StrategySentence:
		c.accumulate(runes, sentenceSegments(runes), func(start, end int) {
			spans = appendSpan(spans, runes, start, end)
		})
	default:
		spans = c.recursiveSplit(runes, 0, len(runes), 0, spans)
	}

	chunks := make([]core.Chunk, 0, len(spans))
	for _, sp := range spans {
		chunkText := string(runes[sp.start:sp.end])
		chunks = append(chunks, core.Chunk{
			Index:      len(chunks),
			StartChar:  sp.start,
			EndChar:    sp.end,
			TokenCount: c.EstimateTokens(chunkText),
			Text:       chunkText,
		})
	}
	return chunks
}

// span is a half-open rune range into the input.
type span struct {
	start, end int
}

// appendSpan records a candidate chunk span, dropping whitespace-only spans.
func appendSpan(spans []span, runes []rune, start, end int) []span {
	if isBlank(runes, start, end) {
		return spans
	}
	return append(spans, span{start: start, end: end})
}

func isBlank(runes []rune, start, end int) bool {
	for i := start; i < end; i++ {
		if !unicode.IsSpace(runes[i]) {
			return false
		}
	}
	return true
}

// recursiveSplit splits runes[start:end) using the separator at sepIdx,
// descending to the next separator for any buffer that is still oversize.
func (c *Chunker) recursiveSplit(runes []rune, start, end, sepIdx int, spans []span) []span {
	if end-start <= c.sizeChars {
		return appendSpan(spans, runes, start, end)
	}

	if sepIdx >= len(recursiveSeparators) || recursiveSeparators[sepIdx] == "" {
		return c.windowSplit(runes, start, end, spans)
	}

	segs := splitOn(runes, start, end, recursiveSeparators[sepIdx])
	if len(segs) <= 1 {
		// Separator absent at this level, descend.
		return c.recursiveSplit(runes, start, end, sepIdx+1, spans)
	}

	c.accumulate(runes, segs, func(s, e int) {
		if e-s > c.sizeChars {
			spans = c.recursiveSplit(runes, s, e, sepIdx+1, spans)
		} else {
			spans = appendSpan(spans, runes, s, e)
		}
	})
	return spans
}

// accumulate greedily packs segments into a running buffer. When the next
// segment would push the buffer past the size budget the buffer is emitted
// and the next buffer is seeded with its trailing overlap, so the emitted
// ranges tile the input without gaps.
func (c *Chunker) accumulate(runes []rune, segs []span, emit func(start, end int)) {
	bufStart := -1
	bufEnd := 0

	for _, seg := range segs {
		if bufStart < 0 {
			bufStart, bufEnd = seg.start, seg.end
			continue
		}
		if seg.end-bufStart > c.sizeChars && bufEnd > bufStart {
			emit(bufStart, bufEnd)
			overlap := c.overlapChars
			if overlap > bufEnd-bufStart {
				overlap = bufEnd - bufStart
			}
			bufStart = bufEnd - overlap
		}
		bufEnd = seg.end
	}

	if bufStart >= 0 && bufEnd > bufStart {
		emit(bufStart, bufEnd)
	}
}

// windowSplit emits fixed-width windows with stride sizeChars-overlapChars.
// Last resort when no separator can break the text down.
func (c *Chunker) windowSplit(runes []rune, start, end int, spans []span) []span {
	stride := c.sizeChars - c.overlapChars
	if stride < 1 {
		stride = 1
	}
	for i := start; i < end; i += stride {
		e := i + c.sizeChars
		if e > end {
			e = end
		}
		spans = appendSpan(spans, runes, i, e)
		if e == end {
			break
		}
	}
	return spans
}

// splitOn splits runes[start:end) on sep. Each segment's end extends through
// its trailing separator, so segments tile the range exactly.
func splitOn(runes []rune, start, end int, sep string) []span {
	sepRunes := []rune(sep)
	var segs []span
	segStart := start

	for i := start; i+len(sepRunes) <= end; i++ {
		if !matchAt(runes, i, sepRunes) {
			continue
		}
		segs = append(segs, span{start: segStart, end: i + len(sepRunes)})
		segStart = i + len(sepRunes)
		i += len(sepRunes) - 1
	}

	if segStart < end {
		segs = append(segs, span{start: segStart, end: end})
	}
	return segs
}

func matchAt(runes []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

// paragraphSegments splits on blank lines: a whitespace run containing at
// least two newlines ends the segment it follows.
func paragraphSegments(runes []rune) []span {
	var segs []span
	segStart := 0
	i := 0
	for i < len(runes) {
		if runes[i] != '\n' {
			i++
			continue
		}
		// Scan the whitespace run starting at this newline.
		j := i + 1
		newlines := 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newlines++
			}
			j++
		}
		if newlines >= 2 {
			segs = append(segs, span{start: segStart, end: j})
			segStart = j
		}
		i = j
	}
	if segStart < len(runes) {
		segs = append(segs, span{start: segStart, end: len(runes)})
	}
	return segs
}

// sentenceSegments splits after sentence terminators followed by whitespace.
func sentenceSegments(runes []rune) []span {
	var segs []span
	segStart := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		segs = append(segs, span{start: segStart, end: j})
		segStart = j
		i = j - 1
	}
	if segStart < len(runes) {
		segs = append(segs, span{start: segStart, end: len(runes)})
	}
	return segs
}

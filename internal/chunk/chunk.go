// Package chunk splits document text into ordered fragments for embedding.
//
// Splitting is a pure function of its inputs: the same text and options
// always produce the same fragments, which keeps re-syncs idempotent.
package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Strategy selects how a document is split.
type Strategy string

const (
	// StrategyFixedChars produces fixed-size character windows with
	// optional overlap, pulling boundaries back to whitespace.
	StrategyFixedChars Strategy = "fixed_chars"

	// StrategyParagraphs splits on blank lines and greedily packs
	// consecutive paragraphs up to the size limit.
	StrategyParagraphs Strategy = "paragraphs"

	// StrategySentences groups a fixed number of sentences per fragment.
	// Size is a sentence count, not a character count.
	StrategySentences Strategy = "sentences"

	// StrategyHybrid packs paragraphs to a target size and re-splits any
	// oversized fragment by sentences.
	StrategyHybrid Strategy = "hybrid"
)

// ErrInvalidConfig indicates the caller supplied unusable chunking
// parameters. Never retried.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// boundaryLookback is how far a fixed_chars window boundary may be pulled
// back to land on whitespace instead of splitting a word.
const boundaryLookback = 50

// Options configures Split.
type Options struct {
	Strategy Strategy
	Size     int // characters, or sentences for StrategySentences
	Overlap  int // characters, StrategyFixedChars only
	MaxSize  int // StrategyHybrid re-split threshold; defaults to 2*Size
}

var paragraphSep = regexp.MustCompile(`\n[ \t\r]*\n`)

// Split divides text into an ordered sequence of fragments.
// Empty or blank input yields an empty slice and no error.
func Split(text string, opts Options) ([]string, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch opts.Strategy {
	case StrategyFixedChars:
		return splitFixed(text, opts.Size, opts.Overlap), nil
	case StrategyParagraphs:
		return splitParagraphs(text, opts.Size), nil
	case StrategySentences:
		return splitSentences(text, opts.Size), nil
	case StrategyHybrid:
		maxSize := opts.MaxSize
		if maxSize <= 0 {
			maxSize = 2 * opts.Size
		}
		return splitHybrid(text, opts.Size, maxSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, opts.Strategy)
	}
}

func validate(opts Options) error {
	if opts.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, opts.Size)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		return fmt.Errorf("%w: overlap %d must satisfy 0 <= overlap < size %d",
			ErrInvalidConfig, opts.Overlap, opts.Size)
	}
	if opts.MaxSize > 0 && opts.MaxSize < opts.Size {
		return fmt.Errorf("%w: max size %d smaller than size %d",
			ErrInvalidConfig, opts.MaxSize, opts.Size)
	}
	return nil
}

// splitFixed walks size-character windows across text. A window boundary is
// pulled back to the nearest preceding whitespace within boundaryLookback so
// words are not split; the next window starts overlap characters before the
// previous one ended.
func splitFixed(text string, size, overlap int) []string {
	var chunks []string
	n := len(text)
	start := 0

	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else if cut := lastSpaceIn(text, max(start, end-boundaryLookback), end); cut > start {
			end = cut + 1
		}

		if c := strings.TrimSpace(text[start:end]); c != "" {
			chunks = append(chunks, c)
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSpaceIn returns the index of the last whitespace rune in text[lo:hi),
// or -1 if none.
func lastSpaceIn(text string, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if unicode.IsSpace(rune(text[i])) {
			return i
		}
	}
	return -1
}

// splitParagraphs splits on blank lines and greedily accumulates consecutive
// paragraphs while the joined length stays within maxChars. A single
// paragraph longer than maxChars becomes its own oversized fragment.
func splitParagraphs(text string, maxChars int) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, para := range paragraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(current) > 0 && currentLen+2+len(para) > maxChars {
			flush()
		}
		if len(current) > 0 {
			currentLen += 2
		}
		current = append(current, para)
		currentLen += len(para)
	}
	flush()
	return chunks
}

// splitSentences groups perChunk sentences per fragment. Blank lines are hard
// boundaries: a group never spans two paragraphs. A trailing partial group is
// kept as a final, shorter fragment.
func splitSentences(text string, perChunk int) []string {
	var chunks []string
	for _, para := range paragraphSep.Split(text, -1) {
		sentences := sentencesOf(para)
		for i := 0; i < len(sentences); i += perChunk {
			end := i + perChunk
			if end > len(sentences) {
				end = len(sentences)
			}
			chunks = append(chunks, strings.Join(sentences[i:end], " "))
		}
	}
	return chunks
}

// sentencesOf splits a paragraph on sentence-terminal punctuation followed by
// whitespace or end of text. Text without terminal punctuation becomes a
// single sentence.
func sentencesOf(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isTerminal(text[i]) {
			continue
		}
		// Consume a run of terminal punctuation.
		j := i
		for j+1 < len(text) && isTerminal(text[j+1]) {
			j++
		}
		if j+1 == len(text) || unicode.IsSpace(rune(text[j+1])) {
			if s := strings.TrimSpace(text[start : j+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = j + 1
		}
		i = j
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// splitHybrid packs paragraphs to targetSize, then re-splits any fragment
// exceeding maxSize by sentences, choosing a sentence count so the regrouped
// fragments approximate targetSize.
func splitHybrid(text string, targetSize, maxSize int) []string {
	var chunks []string
	for _, c := range splitParagraphs(text, targetSize) {
		if len(c) <= maxSize {
			chunks = append(chunks, c)
			continue
		}
		sentences := sentencesOf(c)
		if len(sentences) == 0 {
			chunks = append(chunks, c)
			continue
		}
		perChunk := targetSize * len(sentences) / len(c)
		if perChunk < 1 {
			perChunk = 1
		}
		chunks = append(chunks, splitSentences(c, perChunk)...)
	}
	return chunks
}

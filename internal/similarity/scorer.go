// Package similarity finds near-duplicate sentences in free text.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Defaults used by NewScorer.
const (
	DefaultThreshold         = 0.6
	DefaultMinSentenceLength = 5
	DefaultTerminators       = ".!?。"
)

// Group is a set of sentences judged mutually near-identical
type Group struct {
	Sentences []string `json:"sentences"`
	Count     int      `json:"count"`
}

// Report summarizes duplication in a text
type Report struct {
	DuplicateCount      int     `json:"count"`
	DuplicateGroups     []Group `json:"duplicates"`
	DuplicatePercentage int     `json:"percentage"`
}

// Options tune sentence splitting and matching
type Options struct {
	// Threshold is the minimum token-overlap ratio for two sentences to be grouped.
	Threshold float64
	// MinSentenceLength drops sentences whose rune length is at or below it.
	MinSentenceLength int
	// Terminators are the sentence-ending characters.
	Terminators string
}

// Scorer computes similarity reports. The zero value is not usable; use NewScorer.
type Scorer struct {
	opts Options
}

// NewScorer creates a scorer, filling unset options with defaults
func NewScorer(opts Options) *Scorer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinSentenceLength <= 0 {
		opts.MinSentenceLength = DefaultMinSentenceLength
	}
	if opts.Terminators == "" {
		opts.Terminators = DefaultTerminators
	}
	return &Scorer{opts: opts}
}

// Analyze groups near-duplicate sentences of text
func (s *Scorer) Analyze(text string) Report {
	empty := Report{DuplicateGroups: []Group{}}
	if strings.TrimSpace(text) == "" {
		return empty
	}

	sentences := s.Sentences(text)
	if len(sentences) == 0 {
		return empty
	}

	lowered := make([]string, len(sentences))
	tokens := make([][]string, len(sentences))
	for i, sentence := range sentences {
		lowered[i] = strings.ToLower(sentence)
		tokens[i] = strings.Fields(lowered[i])
	}

	groups := []Group{}
	visited := make([]bool, len(sentences))

	// The last sentence never opens a group: it has nothing after it to match.
	for i := 0; i < len(sentences)-1; i++ {
		if visited[i] {
			continue
		}
		members := []string{lowered[i]}

		for j := i + 1; j < len(sentences); j++ {
			if visited[j] {
				continue
			}
			if Similarity(tokens[i], tokens[j]) >= s.opts.Threshold {
				members = append(members, lowered[j])
				visited[j] = true
			}
		}

		if len(members) > 1 {
			groups = append(groups, Group{Sentences: members, Count: len(members)})
			visited[i] = true
		}
	}

	duplicates := 0
	for _, g := range groups {
		duplicates += g.Count - 1
	}

	return Report{
		DuplicateCount:      duplicates,
		DuplicateGroups:     groups,
		DuplicatePercentage: int(math.Round(float64(duplicates) / float64(len(sentences)) * 100)),
	}
}

// Sentences splits text on the configured terminators, collapses whitespace and
// drops sentences that are too short to compare.
func (s *Scorer) Sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(s.opts.Terminators, r)
	})

	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized := strings.Join(strings.Fields(part), " ")
		if utf8.RuneCountInString(normalized) > s.opts.MinSentenceLength {
			sentences = append(sentences, normalized)
		}
	}
	return sentences
}

// Similarity is the share of a's tokens (longer than one rune) that also occur in
// b, over the larger token count. Duplicate tokens in a are counted each time.
func Similarity(a, b []string) float64 {
	total := max(len(a), len(b))
	if total == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		inB[tok] = struct{}{}
	}

	common := 0
	for _, tok := range a {
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		if _, ok := inB[tok]; ok {
			common++
		}
	}
	return float64(common) / float64(total)
}

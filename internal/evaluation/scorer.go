// Package evaluation scores a finished cover letter against a heuristic rubric.
package evaluation

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LengthVerdict classifies the character count of a document
type LengthVerdict int

const (
	LengthAdequate LengthVerdict = iota
	LengthTooShort
	LengthTooLong
)

// Markers are the substrings that signal the expected structure of a letter
type Markers struct {
	Application string
	Experience  string
	Thanks      string
}

// Labels are the user-facing verdict strings
type Labels struct {
	LengthAdequate   string
	LengthTooShort   string
	LengthTooLong    string
	StructureGood    string
	StructureNeedsUp string
}

// Rubric configures the scorer
type Rubric struct {
	MinLength     int
	MaxLength     int
	WordTarget    int
	Markers       Markers
	Labels        Labels
	KeywordPoints float64
}

// DefaultRubric returns the rubric used for Korean cover letters.
func DefaultRubric() Rubric {
	return Rubric{
		MinLength:  800,
		MaxLength:  1500,
		WordTarget: 100,
		Markers: Markers{
			Application: "지원",
			Experience:  "경험",
			Thanks:      "감사",
		},
		Labels: Labels{
			LengthAdequate:   "적절",
			LengthTooShort:   "너무 짧음",
			LengthTooLong:    "너무 김",
			StructureGood:    "좋음",
			StructureNeedsUp: "개선 필요",
		},
		KeywordPoints: 10,
	}
}

// CharacterCount holds the text statistics shown next to the editor
type CharacterCount struct {
	Total         int `json:"total"`
	WithoutSpaces int `json:"withoutSpaces"`
	Words         int `json:"words"`
}

// Count computes character statistics. Characters are runes.
func Count(text string) CharacterCount {
	withoutSpaces := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			withoutSpaces++
		}
	}
	return CharacterCount{
		Total:         utf8.RuneCountInString(text),
		WithoutSpaces: withoutSpaces,
		Words:         len(strings.Fields(text)),
	}
}

// Result is the outcome of scoring a document
type Result struct {
	Length         string         `json:"length"`
	LengthVerdict  LengthVerdict  `json:"-"`
	Structure      string         `json:"structure"`
	StructureGood  bool           `json:"-"`
	KeywordMatches int            `json:"keywords"`
	Score          float64        `json:"score"`
	Count          CharacterCount `json:"count"`
}

// Scorer evaluates documents against a rubric
type Scorer struct {
	rubric Rubric
}

// NewScorer creates a scorer for rubric
func NewScorer(rubric Rubric) *Scorer {
	return &Scorer{rubric: rubric}
}

// Evaluate scores text. tags are the bound job's tags; pass jobBound=false when the
// session skipped job selection.
func (s *Scorer) Evaluate(text string, tags []string, jobBound bool) Result {
	r := s.rubric
	count := Count(text)

	verdict := LengthAdequate
	label := r.Labels.LengthAdequate
	switch {
	case count.Total < r.MinLength:
		verdict, label = LengthTooShort, r.Labels.LengthTooShort
	case count.Total > r.MaxLength:
		verdict, label = LengthTooLong, r.Labels.LengthTooLong
	}

	hasApplication := strings.Contains(text, r.Markers.Application)
	hasExperience := strings.Contains(text, r.Markers.Experience)
	hasThanks := strings.Contains(text, r.Markers.Thanks)

	structureGood := hasApplication && hasExperience && hasThanks
	structureLabel := r.Labels.StructureNeedsUp
	if structureGood {
		structureLabel = r.Labels.StructureGood
	}

	matches := 0
	if jobBound {
		matches = KeywordMatches(text, tags)
	}

	score := 10.0
	if verdict == LengthAdequate {
		score = 30
	}
	// Structure points only look at the application and experience markers.
	if hasApplication && hasExperience {
		score += 30
	} else {
		score += 10
	}
	if jobBound {
		score += float64(matches) * r.KeywordPoints
	} else {
		score += 20
	}
	if count.Words >= r.WordTarget {
		score += 20
	} else {
		score += float64(count.Words) * 0.2
	}

	return Result{
		Length:         label,
		LengthVerdict:  verdict,
		Structure:      structureLabel,
		StructureGood:  structureGood,
		KeywordMatches: matches,
		Score:          math.Min(100, math.Max(0, score)),
		Count:          count,
	}
}

// KeywordMatches counts tags found case-insensitively in text
func KeywordMatches(text string, tags []string) int {
	lowered := strings.ToLower(text)
	n := 0
	for _, tag := range tags {
		if strings.Contains(lowered, strings.ToLower(tag)) {
			n++
		}
	}
	return n
}

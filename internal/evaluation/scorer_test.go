package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill pads prefix with two-letter words until it is exactly n runes long.
func fill(prefix string, n int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for len([]rune(b.String())) < n {
		b.WriteString("ab ")
	}
	return string([]rune(b.String())[:n])
}

func TestScorer_Evaluate(t *testing.T) {
	scorer := NewScorer(DefaultRubric())
	tags := []string{"React", "TypeScript", "Next.js"}

	t.Run("full marks for adequate structured letter", func(t *testing.T) {
		text := fill("지원 동기와 경험을 말씀드립니다. react와 TYPESCRIPT를 씁니다. 감사합니다. ", 1000)
		require.Equal(t, 1000, Count(text).Total)

		result := scorer.Evaluate(text, tags, true)

		assert.Equal(t, "적절", result.Length)
		assert.Equal(t, LengthAdequate, result.LengthVerdict)
		assert.Equal(t, "좋음", result.Structure)
		assert.True(t, result.StructureGood)
		assert.Equal(t, 2, result.KeywordMatches)
		assert.GreaterOrEqual(t, result.Count.Words, 100)
		assert.Equal(t, 100.0, result.Score)
	})

	t.Run("short letter without job", func(t *testing.T) {
		result := scorer.Evaluate("지원 경험", tags, false)

		assert.Equal(t, "너무 짧음", result.Length)
		assert.Equal(t, "개선 필요", result.Structure)
		assert.False(t, result.StructureGood)
		assert.Equal(t, 0, result.KeywordMatches)
		// 10 length + 30 structure (application and experience only) + 20 flat + 2 words * 0.2
		assert.InDelta(t, 60.4, result.Score, 1e-9)
	})

	t.Run("too long letter", func(t *testing.T) {
		result := scorer.Evaluate(fill("", 1600), nil, true)
		assert.Equal(t, "너무 김", result.Length)
		assert.Equal(t, LengthTooLong, result.LengthVerdict)
		// 10 length + 10 structure + 0 keywords + 20 words
		assert.Equal(t, 40.0, result.Score)
	})

	t.Run("score is clamped", func(t *testing.T) {
		many := []string{"go", "rust", "java", "kotlin", "swift"}
		text := fill("지원 경험 감사 go rust java kotlin swift ", 900)
		result := scorer.Evaluate(text, many, true)
		assert.Equal(t, 5, result.KeywordMatches)
		assert.Equal(t, 100.0, result.Score)
	})

	t.Run("empty text", func(t *testing.T) {
		result := scorer.Evaluate("", tags, true)
		assert.Equal(t, 20.0, result.Score)
		assert.Equal(t, CharacterCount{}, result.Count)
	})
}

func TestScorer_CustomMarkers(t *testing.T) {
	rubric := DefaultRubric()
	rubric.Markers = Markers{Application: "apply", Experience: "experience", Thanks: "thanks"}
	rubric.Labels.StructureGood = "good"
	scorer := NewScorer(rubric)

	result := scorer.Evaluate("I apply with experience, thanks", nil, false)
	assert.Equal(t, "good", result.Structure)
	assert.True(t, result.StructureGood)
}

func TestCount(t *testing.T) {
	count := Count("  안녕하세요 world\n둘째 줄 ")
	assert.Equal(t, 18, count.Total)
	assert.Equal(t, 12, count.WithoutSpaces)
	assert.Equal(t, 4, count.Words)
}

func TestKeywordMatches(t *testing.T) {
	assert.Equal(t, 2, KeywordMatches("Built with NODE.js on aws", []string{"Node.js", "AWS", "React"}))
	assert.Equal(t, 0, KeywordMatches("anything", nil))
}

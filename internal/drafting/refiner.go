package drafting

import (
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

// Keywords decide how a chat request is routed. A request is a revision when
// it contains any Revise keyword.
type Keywords struct {
	Revise     []string
	Motivation []string
	Experience []string
}

func DefaultKeywords() Keywords {
	return Keywords{
		Revise:     []string{"수정", "바꿔", "변경"},
		Motivation: []string{"지원동기", "동기"},
		Experience: []string{"경험", "역량"},
	}
}

// Refiner applies chat revision requests to a draft.
type Refiner struct {
	kw Keywords
}

func NewRefiner(kw Keywords) *Refiner {
	return &Refiner{kw: kw}
}

// Refine returns the revised draft, the assistant reply, and whether the draft
// changed.
func (r *Refiner) Refine(doc Document, request string, job *models.JobPosting) (Document, string, bool) {
	if !containsAny(request, r.kw.Revise) {
		if job != nil {
			return doc, fmt.Sprintf("%s 포지션에 대한 좋은 질문이네요! 구체적으로 어떤 부분을 수정하고 싶으신지 말씀해주세요.", job.Title), false
		}
		return doc, "어떤 부분을 수정하고 싶으신지 구체적으로 말씀해주세요!", false
	}

	switch {
	case containsAny(request, r.kw.Motivation):
		body := fmt.Sprintf("사용자 요청에 따라 수정된 지원 동기입니다. %s에 맞게 내용을 조정했습니다.", request)
		return doc.WithBody(SectionMotivation, body), "지원 동기 부분을 수정했습니다. 확인해보세요!", true
	case containsAny(request, r.kw.Experience):
		body := fmt.Sprintf("사용자 요청에 따라 수정된 핵심 역량입니다. %s에 맞게 내용을 보완했습니다.", request)
		return doc.WithBody(SectionCompetency, body), "핵심 역량 및 경험 부분을 수정했습니다!", true
	default:
		return doc, fmt.Sprintf("\"%s\" 요청을 반영하여 자기소개서를 수정했습니다. 어떤 부분을 더 수정하고 싶으신가요?", request), false
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

package drafting

import (
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

const reasonExcerptRunes = 100

// Template holds the literal text the generator stitches together.
type Template struct {
	MotivationHeading string
	CompetencyHeading string
	GrowthHeading     string

	DefaultStrengths  string
	DefaultWeaknesses string
	// NeedMarker selects the growth plan phrasing when found in the weaknesses.
	NeedMarker string
	Closing    string
}

// DefaultTemplate returns the Korean cover letter template.
func DefaultTemplate() Template {
	return Template{
		MotivationHeading: "【지원 동기】",
		CompetencyHeading: "【핵심 역량 및 경험】",
		GrowthHeading:     "【성장 계획】",
		DefaultStrengths:  "다양한 기술 스택과 프로젝트 경험을 보유하고 있으며, 문제 해결 능력이 뛰어남",
		DefaultWeaknesses: "지속적인 학습과 성장이 필요한 영역들이 있음",
		NeedMarker:        "필요",
		Closing:           "감사합니다.",
	}
}

// Input is what a draft is generated from. Both fields are optional.
type Input struct {
	Job      *models.JobPosting
	Feedback *models.AnalysisFeedback
}

// Generator builds structured cover letter drafts.
type Generator struct {
	tmpl Template
}

func NewGenerator(tmpl Template) *Generator {
	return &Generator{tmpl: tmpl}
}

// Generate produces a draft. It is a pure function of its input.
func (g *Generator) Generate(in Input) Document {
	strengths := g.tmpl.DefaultStrengths
	weaknesses := g.tmpl.DefaultWeaknesses
	if in.Feedback != nil {
		if in.Feedback.Strengths != "" {
			strengths = in.Feedback.Strengths
		}
		if in.Feedback.Weaknesses != "" {
			weaknesses = in.Feedback.Weaknesses
		}
	}

	return Document{
		Title: g.title(in.Job),
		Sections: []Section{
			{Kind: SectionOpening, Body: g.opening(in.Job)},
			{Kind: SectionMotivation, Heading: g.tmpl.MotivationHeading, Body: g.motivation(in.Job)},
			{Kind: SectionCompetency, Heading: g.tmpl.CompetencyHeading, Body: g.competency(in.Job, strengths)},
			{Kind: SectionGrowthPlan, Heading: g.tmpl.GrowthHeading, Body: g.growthPlan(in.Job, weaknesses)},
			{Kind: SectionClosing, Body: g.tmpl.Closing},
		},
	}
}

func (g *Generator) title(job *models.JobPosting) string {
	if job == nil {
		return "[개발자 자기소개서]"
	}
	return fmt.Sprintf("[%s 지원 자기소개서]", job.Title)
}

func (g *Generator) opening(job *models.JobPosting) string {
	position := "개발자"
	if job != nil {
		position = job.Title + " - " + job.Company
	}
	return fmt.Sprintf("안녕하세요. %s 포지션에 지원하는 [이름]입니다.", position)
}

func (g *Generator) motivation(job *models.JobPosting) string {
	if job == nil {
		return "개발자로서의 전문성을 발휘하고 지속적으로 성장할 수 있는 환경에서 일하고 싶어 지원하게 되었습니다."
	}
	return fmt.Sprintf(
		"%s의 %s 포지션에 지원하게 된 이유는 %s... 때문입니다. 특히 %s 기술을 활용한 프로젝트 경험이 이 직무와 높은 연관성을 가지고 있다고 생각합니다.",
		job.Company, job.Title, excerpt(job.RecommendationReason, reasonExcerptRunes), strings.Join(firstN(job.Tags, 2), "과 "),
	)
}

func (g *Generator) competency(job *models.JobPosting, strengths string) string {
	closing := "이러한 역량을 바탕으로 팀의 목표 달성에 기여하고 싶습니다."
	if job != nil {
		closing = fmt.Sprintf("이러한 경험을 바탕으로 %s에서 요구하는 %s 등의 역량을 충분히 발휘할 수 있을 것입니다.",
			job.Company, strings.Join(job.Requirements, ", "))
	}
	return "저의 주요 강점은 다음과 같습니다:\n" + strengths + "\n\n" + closing
}

func (g *Generator) growthPlan(job *models.JobPosting, weaknesses string) string {
	gap := "개선이 필요한 영역들을"
	if g.tmpl.NeedMarker != "" && strings.Contains(weaknesses, g.tmpl.NeedMarker) {
		gap = "부족한 부분들을"
	}
	var focus string
	if job != nil && len(job.Tags) > 0 {
		focus = fmt.Sprintf("특히 %s 관련 기술을 더욱 깊이 있게 학습하여 ", job.Tags[len(job.Tags)-1])
	}
	return fmt.Sprintf("현재 %s 지속적으로 학습하며 보완해나가고 있습니다.\n%s회사와 함께 성장하는 개발자가 되겠습니다.", gap, focus)
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

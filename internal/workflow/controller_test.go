package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/drafting"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
)

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type fakeAnalyzer struct {
	ack   string
	err   error
	calls int
	token string
}

func (f *fakeAnalyzer) AnalyzeResume(_ context.Context, _ string, _ []byte, _ string, token string) (string, error) {
	f.calls++
	f.token = token
	return f.ack, f.err
}

type fakeJobs struct {
	jobs []models.JobPosting
	err  error
}

func (f *fakeJobs) RecommendedJobs(context.Context) ([]models.JobPosting, error) {
	return f.jobs, f.err
}

type fakeDocuments struct {
	docs []models.SavedDocument
	err  error
}

func (f *fakeDocuments) AppendDocument(_ context.Context, doc models.SavedDocument) (models.SavedDocument, error) {
	if f.err != nil {
		return models.SavedDocument{}, f.err
	}
	doc.ID = "doc-1"
	f.docs = append(f.docs, doc)
	return doc, nil
}

func (f *fakeDocuments) ListDocuments(context.Context) ([]models.SavedDocument, error) {
	return f.docs, f.err
}

type testHarness struct {
	ctrl     *Controller
	analyzer *fakeAnalyzer
	jobs     *fakeJobs
	docs     *fakeDocuments
	notices  []Notice
}

func newHarness(t *testing.T, token string) *testHarness {
	t.Helper()
	h := &testHarness{
		analyzer: &fakeAnalyzer{ack: "이력서 분석 요청이 접수되었습니다. 완료 시 알림이 전송됩니다."},
		jobs:     &fakeJobs{jobs: []models.JobPosting{testJob("1", "프론트엔드 개발자", "네이버"), testJob("2", "풀스택 개발자", "카카오")}},
		docs:     &fakeDocuments{},
	}
	h.ctrl = NewController(Config{
		Identity:  auth.StaticIdentity{Subject: "user-1", Token: token},
		Analyzer:  h.analyzer,
		Jobs:      h.jobs,
		Documents: h.docs,
		Notifier:  NotifierFunc(func(n Notice) { h.notices = append(h.notices, n) }),
		Clock:     func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	h.ctrl.StartNewSession()
	return h
}

func (h *testHarness) lastNotice() Notice {
	if len(h.notices) == 0 {
		return Notice{}
	}
	return h.notices[len(h.notices)-1]
}

func testJob(id, title, company string) models.JobPosting {
	return models.JobPosting{
		ID:                   id,
		Title:                title,
		Company:              company,
		Tags:                 []string{"React", "TypeScript", "Next.js"},
		Requirements:         []string{"React 3년 이상"},
		MatchScore:           90,
		RecommendationReason: "경험이 잘 맞습니다.",
	}
}

func advanceTo(t *testing.T, c *Controller, step Step) {
	t.Helper()
	for c.Step() < step {
		require.True(t, c.Advance())
	}
}

func TestController_AdvanceBounds(t *testing.T) {
	for start := FirstStep; start <= LastStep; start++ {
		t.Run(start.String(), func(t *testing.T) {
			h := newHarness(t, "tok")
			advanceTo(t, h.ctrl, start)

			moved := h.ctrl.Advance()

			assert.LessOrEqual(t, h.ctrl.Step(), LastStep)
			if start == LastStep {
				assert.False(t, moved)
				assert.Equal(t, LastStep, h.ctrl.Step())
				assert.False(t, h.ctrl.State().Completed(LastStep))
			} else {
				assert.True(t, moved)
				assert.Equal(t, start+1, h.ctrl.Step())
				assert.True(t, h.ctrl.State().Completed(start))
			}
		})
	}
}

func TestController_RetreatBounds(t *testing.T) {
	for start := FirstStep; start <= LastStep; start++ {
		t.Run(start.String(), func(t *testing.T) {
			h := newHarness(t, "tok")
			advanceTo(t, h.ctrl, start)

			moved := h.ctrl.Retreat()

			assert.GreaterOrEqual(t, h.ctrl.Step(), FirstStep)
			if start == FirstStep {
				assert.False(t, moved)
				assert.Equal(t, FirstStep, h.ctrl.Step())
			} else {
				assert.True(t, moved)
				assert.Equal(t, start-1, h.ctrl.Step())
			}
		})
	}
}

func TestController_RetreatKeepsCompletion(t *testing.T) {
	h := newHarness(t, "tok")
	advanceTo(t, h.ctrl, StepJobSelection)

	h.ctrl.Retreat()

	assert.True(t, h.ctrl.State().Completed(StepResumeAnalysis))
	assert.True(t, h.ctrl.State().Completed(StepJobRecommendation))
}

func TestController_Progress(t *testing.T) {
	h := newHarness(t, "tok")
	for step := FirstStep; step <= LastStep; step++ {
		advanceTo(t, h.ctrl, step)
		assert.InDelta(t, float64(step-1)/4*100, h.ctrl.Progress(), 1e-9, "step %d", step)
	}

	s := NewState()
	s.complete(StepFinalEdit)
	for s.Current() > FirstStep {
		s.retreat()
	}
	assert.Equal(t, 100.0, s.Progress())
}

func TestController_JobSelectionExclusive(t *testing.T) {
	job := testJob("1", "프론트엔드 개발자", "네이버")

	t.Run("select then skip", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.ctrl.SelectJob(job)
		h.ctrl.SkipJobSelection()

		assert.Nil(t, h.ctrl.SelectedJob())
		assert.True(t, h.ctrl.JobSkipped())
		assert.True(t, h.ctrl.State().Completed(StepJobSelection))
	})

	t.Run("skip then select", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.ctrl.SkipJobSelection()
		h.ctrl.SelectJob(job)

		require.NotNil(t, h.ctrl.SelectedJob())
		assert.Equal(t, "1", h.ctrl.SelectedJob().ID)
		assert.False(t, h.ctrl.JobSkipped())
	})
}

func TestController_SelectJobByID(t *testing.T) {
	h := newHarness(t, "tok")
	_, err := h.ctrl.LoadRecommendations(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ctrl.SelectJobByID("2"))
	assert.Equal(t, "카카오", h.ctrl.SelectedJob().Company)

	err = h.ctrl.SelectJobByID("99")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, NoticeError, h.lastNotice().Level)
	assert.Equal(t, "카카오", h.ctrl.SelectedJob().Company)
}

func TestController_LoadRecommendationsFailure(t *testing.T) {
	h := newHarness(t, "tok")
	h.jobs.err = errors.New("catalog down")

	_, err := h.ctrl.LoadRecommendations(context.Background())

	assert.Error(t, err)
	assert.Empty(t, h.ctrl.Recommendations())
	assert.Equal(t, NoticeError, h.lastNotice().Level)
}

func TestController_DraftGeneratedOnce(t *testing.T) {
	h := newHarness(t, "tok")
	h.ctrl.SelectJob(testJob("1", "프론트엔드 개발자", "네이버"))
	advanceTo(t, h.ctrl, StepAIConsult)
	first := h.ctrl.Draft().Render()
	require.NotEmpty(t, first)

	_, err := h.ctrl.SendMessage("지원동기 수정해줘")
	require.NoError(t, err)
	edited := h.ctrl.Draft().Render()
	require.NotEqual(t, first, edited)

	h.ctrl.Retreat()
	h.ctrl.SelectJob(testJob("2", "풀스택 개발자", "카카오"))
	h.ctrl.Advance()

	assert.Equal(t, edited, h.ctrl.Draft().Render())

	h.ctrl.StartNewSession()
	h.ctrl.SelectJob(testJob("2", "풀스택 개발자", "카카오"))
	advanceTo(t, h.ctrl, StepAIConsult)
	assert.Contains(t, h.ctrl.Draft().Render(), "카카오")
}

func TestController_DraftUsesFeedback(t *testing.T) {
	h := newHarness(t, "tok")
	h.ctrl.ApplyFeedback(models.AnalysisFeedback{SubjectID: "user-1", Strengths: "분산 시스템 설계", Weaknesses: "프론트엔드"})
	h.ctrl.SkipJobSelection()
	advanceTo(t, h.ctrl, StepAIConsult)

	competency, ok := h.ctrl.Draft().Section(drafting.SectionCompetency)
	require.True(t, ok)
	assert.Contains(t, competency.Body, "분산 시스템 설계")
	assert.Contains(t, h.ctrl.Draft().Title, "개발자 자기소개서")
}

func TestController_FinalBufferCopiedOnce(t *testing.T) {
	h := newHarness(t, "tok")
	advanceTo(t, h.ctrl, StepFinalEdit)
	assert.Equal(t, h.ctrl.Draft().Render(), h.ctrl.FinalText())

	require.NoError(t, h.ctrl.EditFinal("직접 고친 내용"))
	h.ctrl.Retreat()
	_, err := h.ctrl.SendMessage("경험 부분 바꿔줘")
	require.NoError(t, err)
	h.ctrl.Advance()

	assert.Equal(t, "직접 고친 내용", h.ctrl.FinalText())
}

func TestController_EditFinalOutsideFinalStep(t *testing.T) {
	h := newHarness(t, "tok")
	assert.ErrorIs(t, h.ctrl.EditFinal("x"), ErrNotFinalStep)
}

func TestController_FeedbackInAnyStep(t *testing.T) {
	for step := FirstStep; step <= LastStep; step++ {
		t.Run(step.String(), func(t *testing.T) {
			h := newHarness(t, "tok")
			advanceTo(t, h.ctrl, step)
			require.True(t, h.ctrl.Queue().Offer(models.AnalysisFeedback{SubjectID: "user-1", Strengths: "s", Status: models.FeedbackCompleted}))

			assert.Equal(t, 1, h.ctrl.DrainFeedback())

			assert.True(t, h.ctrl.State().Completed(StepResumeAnalysis))
			assert.Equal(t, step, h.ctrl.Step())
			require.NotNil(t, h.ctrl.Feedback())
			assert.Equal(t, models.FeedbackDelivered, h.ctrl.Feedback().Status)
			assert.Equal(t, 0, h.ctrl.DrainFeedback())
		})
	}
}

func TestController_LateFeedbackDoesNotRegenerateDraft(t *testing.T) {
	h := newHarness(t, "tok")
	advanceTo(t, h.ctrl, StepAIConsult)
	before := h.ctrl.Draft().Render()

	h.ctrl.Queue().Offer(models.AnalysisFeedback{Strengths: "늦게 도착한 강점"})
	h.ctrl.DrainFeedback()

	assert.Equal(t, before, h.ctrl.Draft().Render())
	assert.Equal(t, "늦게 도착한 강점", h.ctrl.Feedback().Strengths)
}

func TestController_Finish(t *testing.T) {
	t.Run("rejected outside final step", func(t *testing.T) {
		h := newHarness(t, "tok")
		advanceTo(t, h.ctrl, StepAIConsult)

		_, err := h.ctrl.Finish(context.Background(), "text")

		assert.ErrorIs(t, err, ErrNotFinalStep)
		assert.Empty(t, h.docs.docs)
		assert.Equal(t, StepAIConsult, h.ctrl.Step())
		assert.Equal(t, ViewWorkflow, h.ctrl.View())
	})

	t.Run("appends one completed document and resets", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.ctrl.SelectJob(testJob("1", "프론트엔드 개발자", "네이버"))
		advanceTo(t, h.ctrl, StepFinalEdit)
		_, err := h.ctrl.SendMessage("연봉은 어때?")
		require.NoError(t, err)
		oldSession := h.ctrl.Session().ID

		saved, err := h.ctrl.Finish(context.Background(), "최종 자기소개서")

		require.NoError(t, err)
		require.Len(t, h.docs.docs, 1)
		assert.Equal(t, models.DocumentCompleted, saved.Status)
		assert.Equal(t, "프론트엔드 개발자", saved.Title)
		assert.Equal(t, "네이버", saved.Counterpart)
		assert.Equal(t, "최종 자기소개서", saved.Content)
		assert.Equal(t, "user-1", saved.SubjectID)

		assert.Equal(t, ViewDashboard, h.ctrl.View())
		assert.Equal(t, 100.0, h.ctrl.LastFinishedState().Progress())
		assert.NotEqual(t, oldSession, h.ctrl.Session().ID)

		fresh := newSession(time.Time{})
		assert.Equal(t, fresh.State, h.ctrl.State())
		assert.Nil(t, h.ctrl.SelectedJob())
		assert.False(t, h.ctrl.JobSkipped())
		assert.True(t, h.ctrl.Draft().IsZero())
		assert.Empty(t, h.ctrl.FinalText())
		assert.Equal(t, fresh.chat, h.ctrl.ChatLog())
		assert.Equal(t, 0.0, h.ctrl.Progress())
	})

	t.Run("skipped job uses generic title", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.ctrl.SkipJobSelection()
		advanceTo(t, h.ctrl, StepFinalEdit)

		saved, err := h.ctrl.Finish(context.Background(), "x")

		require.NoError(t, err)
		assert.Equal(t, "일반 개발자", saved.Title)
		assert.Equal(t, "일반 지원", saved.Counterpart)
	})

	t.Run("store failure preserves session", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.docs.err = errors.New("backend unavailable")
		advanceTo(t, h.ctrl, StepFinalEdit)
		session := h.ctrl.Session().ID

		_, err := h.ctrl.Finish(context.Background(), "x")

		assert.Error(t, err)
		assert.Equal(t, session, h.ctrl.Session().ID)
		assert.Equal(t, StepFinalEdit, h.ctrl.Step())
		assert.False(t, h.ctrl.State().Completed(StepFinalEdit))
		assert.Equal(t, ViewWorkflow, h.ctrl.View())
		assert.Equal(t, NoticeError, h.lastNotice().Level)
	})
}

func TestController_StartNewSession(t *testing.T) {
	h := newHarness(t, "tok")
	h.ctrl.ApplyFeedback(models.AnalysisFeedback{Strengths: "s"})
	h.ctrl.SelectJob(testJob("1", "a", "b"))
	advanceTo(t, h.ctrl, StepFinalEdit)

	h.ctrl.StartNewSession()

	assert.Equal(t, StepResumeAnalysis, h.ctrl.Step())
	for step := FirstStep; step <= LastStep; step++ {
		assert.False(t, h.ctrl.State().Completed(step))
	}
	assert.Nil(t, h.ctrl.SelectedJob())
	assert.True(t, h.ctrl.Draft().IsZero())
	assert.Len(t, h.ctrl.ChatLog(), 1)
	assert.Equal(t, models.RoleAssistant, h.ctrl.ChatLog()[0].Role)
	assert.Equal(t, ViewWorkflow, h.ctrl.View())
	assert.NotNil(t, h.ctrl.Feedback())
}

func TestController_SendMessage(t *testing.T) {
	h := newHarness(t, "tok")

	_, err := h.ctrl.SendMessage("수정해줘")
	assert.ErrorIs(t, err, ErrNoDraft)

	advanceTo(t, h.ctrl, StepAIConsult)

	reply, err := h.ctrl.SendMessage("   ")
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Len(t, h.ctrl.ChatLog(), 1)

	reply, err = h.ctrl.SendMessage("경험 부분 바꿔줘")
	require.NoError(t, err)
	assert.Equal(t, "핵심 역량 및 경험 부분을 수정했습니다!", reply)

	log := h.ctrl.ChatLog()
	require.Len(t, log, 3)
	assert.Equal(t, models.RoleUser, log[1].Role)
	assert.Equal(t, models.RoleAssistant, log[2].Role)
}

func TestController_Resume(t *testing.T) {
	t.Run("non pdf rejected without state change", func(t *testing.T) {
		h := newHarness(t, "tok")
		require.NoError(t, h.ctrl.SelectResume("resume.pdf", pdfContent))

		err := h.ctrl.SelectResume("notes.txt", []byte("plain text resume"))

		assert.ErrorIs(t, err, ErrInvalidFileType)
		assert.Equal(t, "resume.pdf", h.ctrl.SelectedResume().Name)
		assert.Equal(t, 0, h.analyzer.calls)
		assert.Equal(t, "파일 형식 오류", h.lastNotice().Title)
	})

	t.Run("new selection keeps cached feedback", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.ctrl.ApplyFeedback(models.AnalysisFeedback{SubjectID: "user-1", Strengths: "이전 분석", Weaknesses: "없음"})

		require.NoError(t, h.ctrl.SelectResume("second.pdf", pdfContent))

		require.NotNil(t, h.ctrl.Feedback())
		assert.Equal(t, "이전 분석", h.ctrl.Feedback().Strengths)
		assert.True(t, h.ctrl.State().Completed(StepResumeAnalysis))

		h.ctrl.ApplyFeedback(models.AnalysisFeedback{SubjectID: "user-1", Strengths: "새 분석", Weaknesses: "없음"})
		assert.Equal(t, "새 분석", h.ctrl.Feedback().Strengths)
	})

	t.Run("analyze without selection", func(t *testing.T) {
		h := newHarness(t, "tok")
		_, err := h.ctrl.AnalyzeResume(context.Background())
		assert.ErrorIs(t, err, ErrNoResumeSelected)
		assert.Equal(t, 0, h.analyzer.calls)
	})

	t.Run("analyze without credential", func(t *testing.T) {
		h := newHarness(t, "")
		require.NoError(t, h.ctrl.SelectResume("resume.pdf", pdfContent))

		_, err := h.ctrl.AnalyzeResume(context.Background())

		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Equal(t, 0, h.analyzer.calls)
		assert.NotNil(t, h.ctrl.SelectedResume())
	})

	t.Run("failed upload keeps the file", func(t *testing.T) {
		h := newHarness(t, "tok")
		h.analyzer.err = errors.New("503")
		require.NoError(t, h.ctrl.SelectResume("resume.pdf", pdfContent))

		_, err := h.ctrl.AnalyzeResume(context.Background())

		assert.Error(t, err)
		assert.NotNil(t, h.ctrl.SelectedResume())
		assert.Equal(t, "요청 실패", h.lastNotice().Title)
	})

	t.Run("acknowledged upload clears the file", func(t *testing.T) {
		h := newHarness(t, "tok")
		require.NoError(t, h.ctrl.SelectResume("resume.pdf", pdfContent))

		ack, err := h.ctrl.AnalyzeResume(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "이력서 분석 요청이 접수되었습니다. 완료 시 알림이 전송됩니다.", ack)
		assert.Equal(t, "tok", h.analyzer.token)
		assert.Nil(t, h.ctrl.SelectedResume())
		assert.False(t, h.ctrl.State().Completed(StepResumeAnalysis))
	})
}

func TestController_EvaluateFinalText(t *testing.T) {
	h := newHarness(t, "tok")
	h.ctrl.SelectJob(testJob("1", "프론트엔드 개발자", "네이버"))
	advanceTo(t, h.ctrl, StepFinalEdit)
	require.NoError(t, h.ctrl.EditFinal("I love coding. I love coding. Weather is nice today. React 지원 경험 감사"))

	result := h.ctrl.Evaluate()
	assert.Equal(t, 1, result.KeywordMatches)
	assert.True(t, result.StructureGood)

	report := h.ctrl.Duplicates()
	assert.Equal(t, 1, report.DuplicateCount)

	assert.Equal(t, h.ctrl.CharacterCount(), result.Count)
}

func TestController_SavedDocuments(t *testing.T) {
	h := newHarness(t, "tok")
	h.docs.docs = []models.SavedDocument{{ID: "a"}, {ID: "b"}}

	docs, err := h.ctrl.SavedDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	h.docs.err = errors.New("down")
	docs, err = h.ctrl.SavedDocuments(context.Background())
	assert.Error(t, err)
	assert.Len(t, docs, 2)
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/evaluation"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/similarity"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/workflow"
)

const shellHelp = `commands:
  status             show view, step and progress
  new                start a new session
  next | back        move between steps
  resume <path>      select a PDF resume
  analyze            request analysis of the selected resume
  feedback           show the cached analysis
  jobs               load recommended jobs
  select <id>        bind a recommended job (job_selection)
  skip               continue without a job (job_selection)
  draft              show the generated draft
  chat <text>        ask for a draft change (ai_consult)
  history            show the chat log
  edit <text>        replace the final text
  edit-file <path>   replace the final text with a file's contents
  final              show the final text
  count              character statistics of the final text
  eval               score the final text
  dup                report repeated sentences
  finish             save the final text and return to the dashboard
  docs               list saved documents
  quit`

var (
	errNoSession = errors.New("no session in progress, run new")
	errWrongStep = errors.New("command not available in this step")
)

// sessionCommands need the workflow view. A valid step restricts the command
// to that step.
var sessionCommands = map[string]workflow.Step{
	"next":      0,
	"back":      0,
	"resume":    0,
	"analyze":   0,
	"jobs":      0,
	"select":    workflow.StepJobSelection,
	"skip":      workflow.StepJobSelection,
	"draft":     0,
	"chat":      workflow.StepAIConsult,
	"history":   0,
	"edit":      0,
	"edit-file": 0,
	"final":     0,
	"count":     0,
	"eval":      0,
	"dup":       0,
	"finish":    0,
}

// shell runs studio commands against a Controller. exec and the event loop
// own the controller; push callbacks reach it only through post and the
// feedback queue.
type shell struct {
	ctrl     *workflow.Controller
	out      io.Writer
	events   chan string
	readFile func(string) ([]byte, error)
}

func newShell(out io.Writer) *shell {
	return &shell{
		out:      out,
		events:   make(chan string, 32),
		readFile: os.ReadFile,
	}
}

// post queues a line for printing from the event loop. It never blocks.
func (s *shell) post(line string) {
	select {
	case s.events <- line:
	default:
	}
}

func (s *shell) notice(n workflow.Notice) {
	if n.Message == "" {
		fmt.Fprintf(s.out, "[%s] %s\n", n.Level, n.Title)
		return
	}
	fmt.Fprintf(s.out, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
}

// scanLines feeds r line by line until EOF.
func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// loop interleaves input lines, queued feedback and push events on one
// goroutine until quit, EOF or ctx is done.
func (s *shell) loop(ctx context.Context, lines <-chan string) error {
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fb := <-s.ctrl.Queue().C():
			s.ctrl.ApplyFeedback(fb)
		case ev := <-s.events:
			fmt.Fprintln(s.out, ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.flush()
			quit, err := s.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			s.prompt()
		}
	}
}

// flush applies queued feedback and prints pending events so a command sees
// everything that arrived before it.
func (s *shell) flush() {
	s.ctrl.DrainFeedback()
	for {
		select {
		case ev := <-s.events:
			fmt.Fprintln(s.out, ev)
		default:
			return
		}
	}
}

func (s *shell) prompt() {
	if s.ctrl.View() == workflow.ViewDashboard {
		fmt.Fprint(s.out, "dashboard> ")
		return
	}
	fmt.Fprintf(s.out, "%s> ", s.ctrl.Step())
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	if err := s.checkContext(cmd); err != nil {
		return false, err
	}

	switch cmd {
	case "":
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit":
		return true, nil
	case "status":
		s.printStatus()
	case "new":
		s.ctrl.StartNewSession()
		s.printStatus()
	case "next":
		if !s.ctrl.Advance() {
			fmt.Fprintln(s.out, "already at the last step")
		}
		s.printStatus()
	case "back":
		if !s.ctrl.Retreat() {
			fmt.Fprintln(s.out, "already at the first step")
		}
		s.printStatus()
	case "resume":
		if arg == "" {
			return false, fmt.Errorf("usage: resume <path>")
		}
		content, err := s.readFile(arg)
		if err != nil {
			return false, fmt.Errorf("failed to read resume: %w", err)
		}
		if err := s.ctrl.SelectResume(filepath.Base(arg), content); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "selected %s (%d bytes)\n", filepath.Base(arg), len(content))
	case "analyze":
		if _, err := s.ctrl.AnalyzeResume(ctx); err != nil {
			return false, err
		}
	case "feedback":
		s.printFeedback(s.ctrl.Feedback())
	case "jobs":
		jobs, err := s.ctrl.LoadRecommendations(ctx)
		if err != nil {
			return false, err
		}
		s.printJobs(jobs)
	case "select":
		if arg == "" {
			return false, fmt.Errorf("usage: select <id>")
		}
		if err := s.ctrl.SelectJobByID(arg); err != nil {
			return false, err
		}
		job := s.ctrl.SelectedJob()
		fmt.Fprintf(s.out, "selected %s at %s\n", job.Title, job.Company)
	case "skip":
		s.ctrl.SkipJobSelection()
		fmt.Fprintln(s.out, "continuing without a job")
	case "draft":
		if s.ctrl.Draft().IsZero() {
			fmt.Fprintln(s.out, "no draft yet")
			return false, nil
		}
		fmt.Fprintln(s.out, s.ctrl.Draft().Render())
	case "chat":
		reply, err := s.ctrl.SendMessage(arg)
		if err != nil {
			return false, err
		}
		if reply != "" {
			fmt.Fprintf(s.out, "assistant: %s\n", reply)
		}
	case "history":
		for _, m := range s.ctrl.ChatLog() {
			fmt.Fprintf(s.out, "%s: %s\n", m.Role, m.Content)
		}
	case "edit":
		if err := s.ctrl.EditFinal(arg); err != nil {
			return false, err
		}
		printCount(s.out, s.ctrl.CharacterCount())
	case "edit-file":
		content, err := s.readFile(arg)
		if err != nil {
			return false, fmt.Errorf("failed to read text: %w", err)
		}
		if err := s.ctrl.EditFinal(string(content)); err != nil {
			return false, err
		}
		printCount(s.out, s.ctrl.CharacterCount())
	case "final":
		fmt.Fprintln(s.out, s.ctrl.FinalText())
		printCount(s.out, s.ctrl.CharacterCount())
	case "count":
		printCount(s.out, s.ctrl.CharacterCount())
	case "eval":
		printEvaluation(s.out, s.ctrl.Evaluate())
	case "dup":
		printDuplicates(s.out, s.ctrl.Duplicates())
	case "finish":
		doc, err := s.ctrl.Finish(ctx, s.ctrl.FinalText())
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "saved %s (%s at %s)\n", doc.ID, doc.Title, doc.Counterpart)
	case "docs":
		docs, err := s.ctrl.SavedDocuments(ctx)
		if err != nil {
			return false, err
		}
		s.printDocuments(docs)
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func (s *shell) checkContext(cmd string) error {
	step, ok := sessionCommands[cmd]
	if !ok {
		return nil
	}
	if s.ctrl.View() != workflow.ViewWorkflow {
		return errNoSession
	}
	if step.Valid() && s.ctrl.Step() != step {
		return fmt.Errorf("%w: %s is only available in %s", errWrongStep, cmd, step)
	}
	return nil
}

func (s *shell) printStatus() {
	if s.ctrl.View() == workflow.ViewDashboard {
		last := s.ctrl.LastFinishedState()
		fmt.Fprintf(s.out, "view: dashboard (last session %.0f%%)\n", last.Progress())
		return
	}
	st := s.ctrl.State()
	fmt.Fprintf(s.out, "view: workflow  step %d/%d %s  progress %.0f%%\n",
		int(st.Current()), int(workflow.LastStep), st.Current(), s.ctrl.Progress())
	for step := workflow.FirstStep; step <= workflow.LastStep; step++ {
		mark := " "
		if st.Completed(step) {
			mark = "x"
		}
		fmt.Fprintf(s.out, "  [%s] %s\n", mark, step)
	}
	switch job := s.ctrl.SelectedJob(); {
	case job != nil:
		fmt.Fprintf(s.out, "job: %s at %s\n", job.Title, job.Company)
	case s.ctrl.JobSkipped():
		fmt.Fprintln(s.out, "job: skipped")
	}
	if r := s.ctrl.SelectedResume(); r != nil {
		fmt.Fprintf(s.out, "resume: %s\n", r.Name)
	}
}

func (s *shell) printFeedback(fb *models.AnalysisFeedback) {
	if fb == nil {
		fmt.Fprintln(s.out, "no analysis yet")
		return
	}
	fmt.Fprintf(s.out, "strengths:\n  %s\nweaknesses:\n  %s\n", fb.Strengths, fb.Weaknesses)
	if fb.Suggestions != "" {
		fmt.Fprintf(s.out, "suggestions:\n  %s\n", fb.Suggestions)
	}
}

func (s *shell) printJobs(jobs []models.JobPosting) {
	if len(jobs) == 0 {
		fmt.Fprintln(s.out, "no recommendations")
		return
	}
	for _, j := range jobs {
		fmt.Fprintf(s.out, "%-12s %3d%%  %s at %s", j.ID, j.MatchScore, j.Title, j.Company)
		if len(j.Tags) > 0 {
			fmt.Fprintf(s.out, "  [%s]", strings.Join(j.Tags, ", "))
		}
		fmt.Fprintln(s.out)
	}
}

func (s *shell) printDocuments(docs []models.SavedDocument) {
	if len(docs) == 0 {
		fmt.Fprintln(s.out, "no saved documents")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(s.out, "%s  %s  %s at %s (%s)\n",
			d.CreatedAt.Format("2006-01-02"), d.ID, d.Title, d.Counterpart, d.Status)
	}
}

func printCount(w io.Writer, c evaluation.CharacterCount) {
	fmt.Fprintf(w, "%d chars, %d without spaces, %d words\n", c.Total, c.WithoutSpaces, c.Words)
}

func printEvaluation(w io.Writer, r evaluation.Result) {
	fmt.Fprintf(w, "length: %s\nstructure: %s\nkeywords: %d\nscore: %.0f\n",
		r.Length, r.Structure, r.KeywordMatches, r.Score)
	printCount(w, r.Count)
}

func printDuplicates(w io.Writer, r similarity.Report) {
	if r.DuplicateCount == 0 {
		fmt.Fprintln(w, "no repeated sentences")
		return
	}
	fmt.Fprintf(w, "repeated sentences: %d (%d%%)\n", r.DuplicateCount, r.DuplicatePercentage)
	for i, g := range r.DuplicateGroups {
		fmt.Fprintf(w, "group %d (%d):\n", i+1, g.Count)
		for _, sentence := range g.Sentences {
			fmt.Fprintf(w, "  - %s\n", sentence)
		}
	}
}

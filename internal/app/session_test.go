package app_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func question(id, prompt, correct string, choices ...string) domain.Question {
	m := make(map[string]string, len(domain.ChoiceKeys))
	for i, key := range domain.ChoiceKeys {
		if i < len(choices) {
			m[key] = choices[i]
		} else {
			m[key] = ""
		}
	}
	return domain.Question{ID: id, Prompt: prompt, Choices: m, Correct: correct}
}

func untimedConfig(questions ...domain.Question) domain.SessionConfig {
	return domain.SessionConfig{
		ClassID:   1,
		Title:     "Geography",
		Questions: questions,
	}
}

func TestJoinIsIdempotentForKnownAnonID(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))

	first := session.Join("", "Sam")
	if first.AnonID == "" {
		t.Fatalf("expected an issued anon id")
	}
	if first.Nickname != "Sam" {
		t.Fatalf("expected nickname Sam, got %q", first.Nickname)
	}

	again := session.Join(first.AnonID, "Somebody Else")
	if again.AnonID != first.AnonID || again.Nickname != first.Nickname {
		t.Fatalf("rejoin changed identity: %+v vs %+v", again, first)
	}
	if got := session.Status().JoinedCount; got != 1 {
		t.Fatalf("rejoin inflated joined count: %d", got)
	}
}

func TestJoinGeneratesNicknameWhenNameMissing(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))

	joined := session.Join("", "")
	if joined.Nickname == "" {
		t.Fatalf("expected a generated nickname")
	}
}

func TestAnonymousSessionStoresNoNickname(t *testing.T) {
	cfg := untimedConfig(question("q1", "Capital of France?", "A", "Paris", "London"))
	cfg.Anonymous = true
	session := app.NewSession("AAAAAA", cfg)

	joined := session.Join("", "Sam")
	if joined.Nickname != "" {
		t.Fatalf("anonymous session leaked nickname %q", joined.Nickname)
	}
}

func TestAnswerOverwritesWhileOpen(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))
	joined := session.Join("", "Sam")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := session.Answer(joined.AnonID, "q1", "B"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := session.Answer(joined.AnonID, "q1", "A"); err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if got := session.Status().AnsweredCount; got != 1 {
		t.Fatalf("expected one logical answer, got %d", got)
	}

	report, err := session.EndSession()
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if report.Leaderboard[0].Correct != 1 {
		t.Fatalf("last choice should win, got %+v", report.Leaderboard[0])
	}
}

func TestAnswerRejectedAfterEndQuestion(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))
	joined := session.Join("", "Sam")
	other := session.Join("", "Pat")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Answer(joined.AnonID, "q1", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := session.EndQuestion(); err != nil {
		t.Fatalf("end question: %v", err)
	}
	if err := session.Answer(other.AnonID, "q1", "B"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed, got %v", err)
	}
	if got := session.Status().AnsweredCount; got != 1 {
		t.Fatalf("rejected answer altered count: %d", got)
	}
}

func TestAnswerRejectedForNonCurrentQuestion(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
		question("q2", "Capital of Japan?", "B", "Seoul", "Tokyo"),
	))
	joined := session.Join("", "Sam")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	if err := session.Answer(joined.AnonID, "q1", "A"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed for stale question, got %v", err)
	}
}

func TestAnswerRequiresJoinedParticipant(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := session.Answer("never-joined", "q1", "A"); !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestAnswerRejectsDisabledChoice(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))
	joined := session.Join("", "Sam")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := session.Answer(joined.AnonID, "q1", "D"); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for empty slot, got %v", err)
	}
	if err := session.Answer(joined.AnonID, "q1", "Z"); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for unknown key, got %v", err)
	}
}

func TestIndexIsMonotonicAndEndsAfterLastQuestion(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
		question("q2", "Two?", "A", "Yes", "No"),
		question("q3", "Three?", "A", "Yes", "No"),
	))
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	last := session.Status().CurrentIndex
	if last != 0 {
		t.Fatalf("expected index 0 after start, got %d", last)
	}
	for i := 0; i < 2; i++ {
		if err := session.EndQuestion(); err != nil {
			t.Fatalf("end question: %v", err)
		}
		if err := session.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
		status := session.Status()
		if status.CurrentIndex < last {
			t.Fatalf("index decreased from %d to %d", last, status.CurrentIndex)
		}
		last = status.CurrentIndex
	}

	if err := session.Next(); err != nil {
		t.Fatalf("final next: %v", err)
	}
	status := session.Status()
	if status.State != domain.StateEnded {
		t.Fatalf("expected ended after last question, got %s", status.State)
	}
	if err := session.Next(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition once ended, got %v", err)
	}
}

func TestControlCallsRejectedInWrongState(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
	))

	if err := session.Next(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("next in lobby: expected ErrInvalidTransition, got %v", err)
	}
	if err := session.EndQuestion(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("end-question in lobby: expected ErrInvalidTransition, got %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Start(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second start: expected ErrInvalidTransition, got %v", err)
	}
}

func TestTimerExpiryClosesQuestion(t *testing.T) {
	clock := newFakeClock()
	seconds := 5
	cfg := untimedConfig(question("q1", "One?", "A", "Yes", "No"))
	cfg.SecondsPerQuestion = &seconds
	session := app.NewSessionWithClock("AAAAAA", cfg, clock.Now)
	joined := session.Join("", "Sam")

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if left := session.Status().TimeLeftSeconds; left == nil || *left != 5 {
		t.Fatalf("expected 5s left, got %v", left)
	}

	clock.Advance(6 * time.Second)
	if left := session.Status().TimeLeftSeconds; left == nil || *left != 0 {
		t.Fatalf("expected 0s left after expiry, got %v", left)
	}
	if err := session.Answer(joined.AnonID, "q1", "A"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed after expiry, got %v", err)
	}
}

func TestTimerRestartsPerQuestion(t *testing.T) {
	clock := newFakeClock()
	seconds := 10
	cfg := untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
		question("q2", "Two?", "A", "Yes", "No"),
	)
	cfg.SecondsPerQuestion = &seconds
	session := app.NewSessionWithClock("AAAAAA", cfg, clock.Now)
	joined := session.Join("", "Sam")

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(11 * time.Second)
	if err := session.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	if left := session.Status().TimeLeftSeconds; left == nil || *left != 10 {
		t.Fatalf("expected fresh 10s for question 2, got %v", left)
	}
	if err := session.Answer(joined.AnonID, "q2", "A"); err != nil {
		t.Fatalf("answer on fresh question: %v", err)
	}
}

func TestAutoEndClosesQuestionWhenAllAnswered(t *testing.T) {
	cfg := untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
		question("q2", "Two?", "A", "Yes", "No"),
	)
	cfg.AutoEndWhenAllAnswered = true
	session := app.NewSession("AAAAAA", cfg)
	sam := session.Join("", "Sam")
	pat := session.Join("", "Pat")

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Answer(sam.AnonID, "q1", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := session.Answer(pat.AnonID, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// Everyone answered; the question is closed, even to re-answers.
	if err := session.Answer(sam.AnonID, "q1", "B"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed after auto-end, got %v", err)
	}
	if status := session.Status(); status.State != domain.StateLive || status.CurrentIndex != 0 {
		t.Fatalf("auto-end must not advance: %+v", status)
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
	))
	session.Join("", "Sam")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := session.EndSession()
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	second, err := session.EndSession()
	if err != nil {
		t.Fatalf("repeat end session: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated end-session returned a different report")
	}
}

func TestResultsUnavailableBeforeEnd(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
	))
	if _, err := session.Results(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before end, got %v", err)
	}
}

func TestCurrentViewNeverExposesCorrectKey(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "Capital of France?", "A", "Paris", "London"),
	))
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	view := session.Current()
	if view.Question == nil {
		t.Fatalf("expected the open question in the student view")
	}
	if view.Question.ID != "q1" || view.Question.Choices["A"] != "Paris" {
		t.Fatalf("unexpected question payload: %+v", view.Question)
	}
	// domain.StudentQuestion has no correct field at all; double-check the
	// prompt/choices are the only content surfaced.
	if view.Question.Prompt == "" {
		t.Fatalf("expected a prompt")
	}
}

func TestDeadlineCloseOnAnswerIsBroadcast(t *testing.T) {
	clock := newFakeClock()
	seconds := 5
	cfg := untimedConfig(question("q1", "One?", "A", "Yes", "No"))
	cfg.SecondsPerQuestion = &seconds
	session := app.NewSessionWithClock("AAAAAA", cfg, clock.Now)
	joined := session.Join("", "Sam")
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch, cancel := session.Subscribe()
	defer cancel()
	<-ch // snapshot taken at subscribe time

	clock.Advance(6 * time.Second)
	if err := session.Answer(joined.AnonID, "q1", "A"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed past the deadline, got %v", err)
	}

	update := <-ch
	if update.TimeLeftSeconds == nil || *update.TimeLeftSeconds != 0 {
		t.Fatalf("watchers should see the question close, got %+v", update)
	}
}

func TestSubscribeReceivesStatusUpdates(t *testing.T) {
	session := app.NewSession("AAAAAA", untimedConfig(
		question("q1", "One?", "A", "Yes", "No"),
	))
	ch, cancel := session.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.State != domain.StateLobby || initial.JoinedCount != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}

	session.Join("", "Sam")
	update := <-ch
	if update.JoinedCount != 1 {
		t.Fatalf("expected join to be broadcast, got %+v", update)
	}
}

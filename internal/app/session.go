package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// Session owns all state for one live-quiz run: joined participants, the
// question sequence, the per-question answer ledger, and the countdown timer.
// Every mutation happens under one mutex, so concurrent control calls,
// answers, and timer expiry serialize deterministically.
type Session struct {
	code      string
	config    domain.SessionConfig
	createdAt time.Time
	now       func() time.Time
	rnd       *rand.Rand

	mu            sync.RWMutex
	state         domain.SessionState
	startedAt     *time.Time
	endedAt       *time.Time
	currentIndex  int
	currentOpened time.Time
	currentClosed bool
	timer         *time.Timer
	timerGen      int

	participants map[string]*domain.Participant
	joinSeq      int

	// answers holds one entry per (question, participant); overwritten on
	// re-answer while the question is open.
	answers map[string]map[string]domain.Answer

	report *domain.Report

	subscribers map[chan domain.Status]struct{}
}

// NewSession builds a session in the lobby state. The question order in cfg
// is frozen for the session's lifetime; shuffling happens before this point.
func NewSession(code string, cfg domain.SessionConfig) *Session {
	return NewSessionWithClock(code, cfg, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(code string, cfg domain.SessionConfig, now func() time.Time) *Session {
	return &Session{
		code:         code,
		config:       cfg,
		createdAt:    now(),
		now:          now,
		rnd:          rand.New(rand.NewSource(now().UnixNano())),
		state:        domain.StateLobby,
		currentIndex: -1,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[string]map[string]domain.Answer),
		subscribers:  make(map[chan domain.Status]struct{}),
	}
}

// Code returns the session's shareable code.
func (s *Session) Code() string {
	return s.code
}

// EndedBefore reports whether the session ended before cutoff; the retention
// sweeper uses it to decide when a session can be dropped.
func (s *Session) EndedBefore(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == domain.StateEnded && s.endedAt != nil && s.endedAt.Before(cutoff)
}

// Join registers a participant, or returns the existing identity unchanged
// when the anon id was issued before. Rejoins never inflate the joined count.
func (s *Session) Join(anonID, name string) domain.JoinResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	anonID = strings.TrimSpace(anonID)
	if anonID != "" {
		if p, ok := s.participants[anonID]; ok {
			return domain.JoinResult{AnonID: p.AnonID, Nickname: p.Nickname}
		}
	}
	if anonID == "" {
		anonID = uuid.NewString()
	}

	nickname := ""
	if !s.config.Anonymous {
		nickname = strings.TrimSpace(name)
		if nickname == "" {
			nickname = randomNickname(s.rnd)
		}
	}

	s.joinSeq++
	s.participants[anonID] = &domain.Participant{
		AnonID:    anonID,
		Nickname:  nickname,
		JoinOrder: s.joinSeq,
		JoinedAt:  s.now(),
	}
	s.broadcastLocked()
	return domain.JoinResult{AnonID: anonID, Nickname: nickname}
}

// Start moves the session from lobby to live and opens question 0.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return domain.ErrInvalidTransition
	}
	s.state = domain.StateLive
	started := s.now()
	s.startedAt = &started
	s.openQuestionLocked(0)
	s.broadcastLocked()
	return nil
}

// Next closes the current question and advances. Advancing past the last
// question ends the session and computes the final report.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLive {
		return domain.ErrInvalidTransition
	}
	s.closeCurrentLocked()
	if s.currentIndex+1 >= len(s.config.Questions) {
		s.endLocked()
	} else {
		s.openQuestionLocked(s.currentIndex + 1)
	}
	s.broadcastLocked()
	return nil
}

// EndQuestion closes the current question early without advancing. Answers
// arriving after this point are rejected; a subsequent Next moves on.
func (s *Session) EndQuestion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLive {
		return domain.ErrInvalidTransition
	}
	s.closeCurrentLocked()
	s.broadcastLocked()
	return nil
}

// EndSession freezes the session and returns the final report. It is safe to
// call repeatedly once ended; retries get the memoized report back.
func (s *Session) EndSession() (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateEnded {
		return *s.report, nil
	}
	if s.state == domain.StateLive {
		s.closeCurrentLocked()
	}
	s.endLocked()
	s.broadcastLocked()
	return *s.report, nil
}

// Answer records a choice for the currently open question, overwriting any
// earlier choice by the same participant.
func (s *Session) Answer(anonID, questionID, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLive {
		return domain.ErrQuestionClosed
	}
	participant, ok := s.participants[strings.TrimSpace(anonID)]
	if !ok {
		return domain.ErrUnknownParticipant
	}

	question := s.config.Questions[s.currentIndex]
	if strings.TrimSpace(questionID) != question.ID {
		return domain.ErrQuestionClosed
	}
	now := s.now()
	if s.currentClosed || s.deadlinePassedLocked(now) {
		// A missed timer fire must not extend the question. Watchers get
		// the closed snapshot here since the timer path was skipped.
		if !s.currentClosed {
			s.closeCurrentLocked()
			s.broadcastLocked()
		}
		return domain.ErrQuestionClosed
	}

	choice = strings.ToUpper(strings.TrimSpace(choice))
	if question.Choices[choice] == "" {
		return domain.ErrInvalidChoice
	}

	ledger, ok := s.answers[question.ID]
	if !ok {
		ledger = make(map[string]domain.Answer)
		s.answers[question.ID] = ledger
	}
	ledger[participant.AnonID] = domain.Answer{Choice: choice, AnsweredAt: now}

	if s.config.AutoEndWhenAllAnswered && len(ledger) >= len(s.participants) {
		s.closeCurrentLocked()
	}
	s.broadcastLocked()
	return nil
}

// Status is the teacher-facing snapshot.
func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

// Current is the student-facing snapshot; the open question is included
// without its correct key.
func (s *Session) Current() domain.CurrentView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := domain.CurrentView{
		State:           s.state,
		Title:           s.config.Title,
		Anonymous:       s.config.Anonymous,
		CurrentIndex:    s.currentIndex,
		TotalQuestions:  len(s.config.Questions),
		TimeLeftSeconds: s.timeLeftLocked(),
	}
	if s.state == domain.StateLive {
		q := s.config.Questions[s.currentIndex]
		view.Question = &domain.StudentQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Choices: q.Choices,
		}
	}
	return view
}

// Results returns the final report, available only once the session ended.
func (s *Session) Results() (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != domain.StateEnded {
		return domain.Report{}, domain.ErrInvalidTransition
	}
	return *s.report, nil
}

// Subscribe returns a channel receiving a status snapshot on every state
// change. The caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Status, func()) {
	ch := make(chan domain.Status, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.statusLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) openQuestionLocked(idx int) {
	s.currentIndex = idx
	s.currentOpened = s.now()
	s.currentClosed = false
	s.armTimerLocked(idx)
}

func (s *Session) armTimerLocked(idx int) {
	s.stopTimerLocked()
	if s.config.SecondsPerQuestion == nil {
		return
	}
	s.timerGen++
	gen := s.timerGen
	d := time.Duration(*s.config.SecondsPerQuestion) * time.Second
	s.timer = time.AfterFunc(d, func() {
		s.expireQuestion(idx, gen)
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// expireQuestion fires on the timer goroutine. The generation check drops
// fires that lost the race with a manual close or a later question's timer.
func (s *Session) expireQuestion(idx, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLive || s.timerGen != gen || s.currentIndex != idx || s.currentClosed {
		return
	}
	s.currentClosed = true
	s.timer = nil
	s.broadcastLocked()
}

func (s *Session) closeCurrentLocked() {
	s.stopTimerLocked()
	s.currentClosed = true
}

func (s *Session) endLocked() {
	s.stopTimerLocked()
	s.state = domain.StateEnded
	ended := s.now()
	s.endedAt = &ended
	report := s.buildReportLocked()
	s.report = &report
}

func (s *Session) deadlinePassedLocked(now time.Time) bool {
	if s.config.SecondsPerQuestion == nil {
		return false
	}
	deadline := s.currentOpened.Add(time.Duration(*s.config.SecondsPerQuestion) * time.Second)
	return !now.Before(deadline)
}

func (s *Session) timeLeftLocked() *int {
	if s.state != domain.StateLive || s.config.SecondsPerQuestion == nil {
		return nil
	}
	left := 0
	if !s.currentClosed {
		elapsed := int(s.now().Sub(s.currentOpened).Seconds())
		if remaining := *s.config.SecondsPerQuestion - elapsed; remaining > 0 {
			left = remaining
		}
	}
	return &left
}

func (s *Session) answeredCountLocked() int {
	if s.state != domain.StateLive {
		return 0
	}
	return len(s.answers[s.config.Questions[s.currentIndex].ID])
}

func (s *Session) statusLocked() domain.Status {
	return domain.Status{
		SessionCode:        s.code,
		State:              s.state,
		Title:              s.config.Title,
		Anonymous:          s.config.Anonymous,
		SecondsPerQuestion: s.config.SecondsPerQuestion,
		CurrentIndex:       s.currentIndex,
		TotalQuestions:     len(s.config.Questions),
		TimeLeftSeconds:    s.timeLeftLocked(),
		JoinedCount:        len(s.participants),
		AnsweredCount:      s.answeredCountLocked(),
	}
}

func (s *Session) broadcastLocked() {
	status := s.statusLocked()
	for ch := range s.subscribers {
		select {
		case ch <- status:
		default:
			// Drop the stale snapshot so a slow watcher never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
}

package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis).
type SessionRepository interface {
	// Insert stores a new session, failing when its code is already taken by
	// a live or recently-ended session.
	Insert(session *Session) bool
	Get(code string) (*Session, bool)
	Remove(code string)
}

// QuizBank loads saved quiz content by id (from cache/backing store).
type QuizBank interface {
	GetQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// Session codes avoid easily-confused characters (no I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeLength      = 6
	codeMaxAttempts = 20
)

// LiveQuizService contains the live-quiz use cases: teacher control calls,
// student join/answer, and the read snapshots both sides poll.
type LiveQuizService struct {
	sessions SessionRepository
	bank     QuizBank // nil when no saved-quiz bank is configured
	joinBase string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLiveQuizService(sessions SessionRepository, bank QuizBank, joinBase string) *LiveQuizService {
	return &LiveQuizService{
		sessions: sessions,
		bank:     bank,
		joinBase: joinBase,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create validates the payload, allocates a fresh session code, and stores
// the session in the lobby state. When the payload names a saved quiz instead
// of inline questions, the questions are loaded through the bank.
func (s *LiveQuizService) Create(ctx context.Context, cfg domain.SessionConfig, quizID string) (code, joinURL string, err error) {
	if len(cfg.Questions) == 0 && quizID != "" {
		if s.bank == nil {
			return "", "", domain.ErrQuizNotFound
		}
		questions, err := s.bank.GetQuiz(ctx, quizID)
		if err != nil {
			return "", "", err
		}
		cfg.Questions = questions
	}
	// The question slice may alias a cached quiz shared between sessions;
	// normalize and shuffle must only touch this session's own copy.
	cfg.Questions = append([]domain.Question(nil), cfg.Questions...)
	if err := domain.ValidateConfig(&cfg); err != nil {
		return "", "", err
	}
	if cfg.ShuffleQuestions {
		// Shuffled once here; the resulting order is frozen for the session.
		s.rndMu.Lock()
		s.rnd.Shuffle(len(cfg.Questions), func(i, j int) {
			cfg.Questions[i], cfg.Questions[j] = cfg.Questions[j], cfg.Questions[i]
		})
		s.rndMu.Unlock()
	}

	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		candidate := s.randomCode()
		session := NewSession(candidate, cfg)
		if s.sessions.Insert(session) {
			return candidate, s.joinURL(candidate), nil
		}
	}
	return "", "", fmt.Errorf("could not allocate a unique session code")
}

// Get exposes a session for transports that operate on it directly.
func (s *LiveQuizService) Get(code string) (*Session, error) {
	session, ok := s.sessions.Get(code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Remove tears a session down explicitly. Reports already fetched by clients
// are unaffected.
func (s *LiveQuizService) Remove(code string) error {
	if _, ok := s.sessions.Get(code); !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions.Remove(code)
	return nil
}

func (s *LiveQuizService) Status(code string) (domain.Status, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Status{}, err
	}
	return session.Status(), nil
}

func (s *LiveQuizService) Start(code string) (domain.Status, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Status{}, err
	}
	if err := session.Start(); err != nil {
		return domain.Status{}, err
	}
	return session.Status(), nil
}

func (s *LiveQuizService) Next(code string) (domain.Status, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Status{}, err
	}
	if err := session.Next(); err != nil {
		return domain.Status{}, err
	}
	return session.Status(), nil
}

func (s *LiveQuizService) EndQuestion(code string) (domain.Status, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Status{}, err
	}
	if err := session.EndQuestion(); err != nil {
		return domain.Status{}, err
	}
	return session.Status(), nil
}

func (s *LiveQuizService) EndSession(code string) (domain.Report, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Report{}, err
	}
	return session.EndSession()
}

func (s *LiveQuizService) Join(code, anonID, name string) (domain.JoinResult, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.JoinResult{}, err
	}
	return session.Join(anonID, name), nil
}

func (s *LiveQuizService) Current(code string) (domain.CurrentView, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.CurrentView{}, err
	}
	return session.Current(), nil
}

func (s *LiveQuizService) Answer(code, anonID, questionID, choice string) error {
	session, err := s.Get(code)
	if err != nil {
		return err
	}
	return session.Answer(anonID, questionID, choice)
}

func (s *LiveQuizService) Results(code string) (domain.Report, error) {
	session, err := s.Get(code)
	if err != nil {
		return domain.Report{}, err
	}
	return session.Results()
}

// Watch returns a channel that receives status snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveQuizService) Watch(code string) (<-chan domain.Status, func(), error) {
	session, err := s.Get(code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

func (s *LiveQuizService) randomCode() string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func (s *LiveQuizService) joinURL(code string) string {
	if s.joinBase == "" {
		return ""
	}
	return s.joinBase + "/join/" + code
}

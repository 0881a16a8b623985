package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// Handler serves the polling REST surface the classroom frontend consumes.
type Handler struct {
	service *app.LiveQuizService
}

func NewHandler(service *app.LiveQuizService) *Handler {
	return &Handler{service: service}
}

// Routes mounts the live-quiz endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/livequiz/create", h.create)
	r.Route("/livequiz/{code}", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Post("/start", h.start)
		r.Post("/next", h.next)
		r.Post("/end-question", h.endQuestion)
		r.Post("/end-session", h.endSession)
		r.Get("/results", h.results)
		r.Post("/join", h.join)
		r.Get("/current", h.current)
		r.Post("/answer", h.answer)
		r.Delete("/", h.remove)
	})
}

type createQuestion struct {
	ID      string            `json:"id"`
	Prompt  string            `json:"prompt"`
	Choices map[string]string `json:"choices"`
	Correct string            `json:"correct,omitempty"`
}

type createRequest struct {
	ClassID                int              `json:"class_id"`
	Title                  string           `json:"title"`
	Anonymous              bool             `json:"anonymous"`
	SecondsPerQuestion     *int             `json:"seconds_per_question"`
	ShuffleQuestions       bool             `json:"shuffle_questions"`
	AutoEndWhenAllAnswered bool             `json:"auto_end_when_all_answered"`
	QuizID                 string           `json:"quiz_id,omitempty"`
	Questions              []createQuestion `json:"questions"`
}

type createResponse struct {
	SessionCode string `json:"session_code"`
	JoinURL     string `json:"join_url,omitempty"`
}

type joinRequest struct {
	AnonID *string `json:"anon_id"`
	Name   *string `json:"name"`
}

type answerRequest struct {
	AnonID     string `json:"anon_id"`
	QuestionID string `json:"question_id"`
	Choice     string `json:"choice"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	questions := make([]domain.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, domain.Question{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Choices: q.Choices,
			Correct: q.Correct,
		})
	}
	cfg := domain.SessionConfig{
		ClassID:                req.ClassID,
		Title:                  req.Title,
		Anonymous:              req.Anonymous,
		SecondsPerQuestion:     req.SecondsPerQuestion,
		ShuffleQuestions:       req.ShuffleQuestions,
		AutoEndWhenAllAnswered: req.AutoEndWhenAllAnswered,
		Questions:              questions,
	}

	code, joinURL, err := h.service.Create(r.Context(), cfg, req.QuizID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{SessionCode: code, JoinURL: joinURL})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Start(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Next(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) endQuestion(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.EndQuestion(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := h.service.EndSession(code); err != nil {
		writeDomainError(w, err)
		return
	}
	status, err := h.service.Status(code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Results(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	anonID, name := "", ""
	if req.AnonID != nil {
		anonID = *req.AnonID
	}
	if req.Name != nil {
		name = *req.Name
	}

	result, err := h.service.Join(chi.URLParam(r, "code"), anonID, name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Current(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	if err := h.service.Answer(chi.URLParam(r, "code"), req.AnonID, req.QuestionID, req.Choice); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(chi.URLParam(r, "code")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUnknownParticipant), errors.Is(err, domain.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidChoice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrQuestionClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

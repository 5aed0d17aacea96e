package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/FlomaWen/party-game/internal/domain"
	"github.com/FlomaWen/party-game/internal/game"
)

// QuestionStore is the administrative question CRUD surface. Mutations are
// expected to invalidate any cache sitting between the store and the
// coordinator (the infra caches do this themselves).
type QuestionStore interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, imageURL, prompt, answer string) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int) (bool, error)
	DeleteAll(ctx context.Context) error
}

// AdminHandler exposes the question management and reset endpoints.
type AdminHandler struct {
	store       QuestionStore
	coordinator *game.Coordinator
}

func NewAdminHandler(store QuestionStore, coordinator *game.Coordinator) *AdminHandler {
	return &AdminHandler{store: store, coordinator: coordinator}
}

// Register mounts the admin routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/questions", h.listQuestions)
	mux.HandleFunc("POST /api/questions", h.createQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", h.deleteQuestion)
	mux.HandleFunc("DELETE /api/questions", h.deleteAll)
	mux.HandleFunc("POST /api/game/reset", h.resetGame)
}

type createQuestionRequest struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
	Answer   string `json:"answer"`
}

func (h *AdminHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list questions failed")
		http.Error(w, "failed to list questions", http.StatusInternalServerError)
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *AdminHandler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" || req.Prompt == "" || req.Answer == "" {
		http.Error(w, "imageUrl, prompt and answer are required", http.StatusBadRequest)
		return
	}

	question, err := h.store.CreateQuestion(r.Context(), req.ImageURL, req.Prompt, req.Answer)
	if err != nil {
		log.Error().Err(err).Msg("create question failed")
		http.Error(w, "failed to create question", http.StatusInternalServerError)
		return
	}
	log.Info().Int("id", question.ID).Msg("question created")
	writeJSON(w, http.StatusCreated, question)
}

func (h *AdminHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid question id", http.StatusBadRequest)
		return
	}

	deleted, err := h.store.DeleteQuestion(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int("id", id).Msg("delete question failed")
		http.Error(w, "failed to delete question", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, domain.ErrQuestionNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		log.Error().Err(err).Msg("delete all questions failed")
		http.Error(w, "failed to delete questions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) resetGame(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Reset(r.Context())
	log.Info().Msg("game reset via admin endpoint")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

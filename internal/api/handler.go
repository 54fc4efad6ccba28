package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/service"
)

// Handler serves the operator debug API. Nothing it does moves money or
// touches sessions.
type Handler struct {
	parser    *usecase.ParserUsecase
	phones    *domain.PhoneNormalizer
	users     repo.UserRepo
	ledger    repo.LedgerRepo
	guardrail domain.GuardrailConfig
	now       usecase.Clock
}

// NewHandler creates a new debug API handler
func NewHandler(
	parser *usecase.ParserUsecase,
	phones *domain.PhoneNormalizer,
	users repo.UserRepo,
	ledger repo.LedgerRepo,
	guardrail domain.GuardrailConfig,
) *Handler {
	return &Handler{
		parser:    parser,
		phones:    phones,
		users:     users,
		ledger:    ledger,
		guardrail: guardrail,
		now:       time.Now,
	}
}

// Routes returns the API router, to be mounted under /api
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse", h.handleParse)
	r.Post("/normalize", h.handleNormalize)
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{id}", h.handleGetUser)
	return r
}

// ParseRequest is the body of POST /api/parse
type ParseRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeStatus(w, http.StatusBadRequest, "text is required")
		return
	}

	res := h.parser.Parse(r.Context(), req.Text)
	writeJSON(w, service.DescribeResolution(res))
}

// NormalizeRequest is the body of POST /api/normalize
type NormalizeRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"` // Optional surrounding message
}

// NormalizeResponse is the result of POST /api/normalize
type NormalizeResponse struct {
	Canonical string `json:"canonical"`
	OK        bool   `json:"ok"`
}

func (h *Handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	canonical, ok := h.phones.Normalize(req.Phone, req.Text)
	writeJSON(w, NormalizeResponse{Canonical: canonical, OK: ok})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	senderID, ok := h.phones.Normalize(id, id)
	if !ok {
		writeStatus(w, http.StatusBadRequest, "invalid phone number")
		return
	}

	state, err := h.users.Get(r.Context(), senderID)
	if errors.Is(err, repo.ErrUserNotFound) {
		writeStatus(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	view := service.DescribeLimits(senderID, state, h.now(), h.guardrail)
	if balance, err := h.ledger.Balance(r.Context(), senderID); err == nil {
		view.Balance = balance.StringFixed(2)
	}
	writeJSON(w, view)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.now()
	views := make([]service.LimitsView, 0, len(users))
	for _, u := range users {
		views = append(views, service.DescribeLimits(u.SenderID, u, now, h.guardrail))
	}
	writeJSON(w, map[string]interface{}{"users": views})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	writeStatus(w, http.StatusInternalServerError, err.Error())
}

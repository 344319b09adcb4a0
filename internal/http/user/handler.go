package user

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cambio/internal/http/render"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/me", render.WithActor(h.me))
	r.Post("/me/availability", render.WithActor(h.setAvailability))
}

// PaymentMethodRoutes serves the caller's own payment methods.
func (h *Handler) PaymentMethodRoutes(r chi.Router) {
	r.Get("/", render.WithActor(h.paymentMethods))
}

type userResponse struct {
	ID           int64       `json:"id"`
	FullName     string      `json:"full_name"`
	Email        string      `json:"email"`
	Role         user.Role   `json:"role"`
	Status       user.Status `json:"status"`
	Available    bool        `json:"available"`
	RegisteredAt time.Time   `json:"registered_at"`
}

type paymentMethodResponse struct {
	ID            int64  `json:"id"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	Alias         string `json:"alias,omitempty"`
	Status        string `json:"status"`
}

func toResponse(u *user.User) userResponse {
	return userResponse{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		Role:         u.Role,
		Status:       u.Status,
		Available:    u.Available,
		RegisteredAt: u.RegisteredAt,
	}
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, actor *user.User) {
	render.JSON(w, http.StatusOK, toResponse(actor))
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

func (h *Handler) setAvailability(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var req availabilityRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	updated, err := h.svc.SetAvailability(r.Context(), actor, *req.Available)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) paymentMethods(w http.ResponseWriter, r *http.Request, actor *user.User) {
	methods, err := h.svc.PaymentMethods(r.Context(), actor.ID)
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := make([]paymentMethodResponse, len(methods))
	for i, pm := range methods {
		resp[i] = paymentMethodResponse{
			ID:            pm.ID,
			AccountType:   pm.AccountType,
			AccountNumber: pm.AccountNumber,
			HolderName:    pm.HolderName,
			Alias:         pm.Alias,
			Status:        pm.Status,
		}
	}

	render.JSON(w, http.StatusOK, resp)
}

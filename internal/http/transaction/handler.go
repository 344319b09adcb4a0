package transaction

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/http/render"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type Handler struct {
	svc *transaction.Service
}

func NewHandler(svc *transaction.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", render.WithActor(h.request))
	r.Get("/", render.WithActor(h.listAll))
	r.Get("/mine", render.WithActor(h.listMine))
	r.Get("/pending", render.WithActor(h.listPending))
	r.Get("/assigned", render.WithActor(h.listAssigned))
	r.Get("/{id}", render.WithActor(h.get))
	r.Post("/{id}/accept", render.WithActor(h.accept))
	r.Post("/{id}/payment-started", render.WithActor(h.markPaymentStarted))
	r.Post("/{id}/complete", render.WithActor(h.markCompleted))
	r.Post("/{id}/cancel", render.WithActor(h.cancel))
	r.Post("/{id}/dispute", render.WithActor(h.openDispute))
	r.Post("/{id}/resolve", render.WithActor(h.resolveDispute))
}

// DisputeRoutes mounts the dispute listings. Parties see the disputes on
// their own transactions, administrators see all of them.
func (h *Handler) DisputeRoutes(r chi.Router) {
	r.Get("/", render.WithActor(h.listAllDisputes))
	r.Get("/mine", render.WithActor(h.listMyDisputes))
}

type requestTransactionRequest struct {
	Operation       transaction.Operation `json:"operation" validate:"required,oneof=deposit withdrawal"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency" validate:"required,len=3,alpha"`
	PaymentMethodID int64                 `json:"payment_method_id" validate:"required,gt=0"`
	FeeOption       transaction.FeeOption `json:"fee_option" validate:"required,oneof=subtract add"`
	Notes           string                `json:"notes" validate:"max=500"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var req requestTransactionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.Request(r.Context(), actor, transaction.RequestParams{
		Operation:       req.Operation,
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		FeeOption:       req.FeeOption,
		Notes:           req.Notes,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, txs []*transaction.Transaction, err error) {
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(txs))
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request, actor *user.User) {
	txs, err := h.svc.ListAll(r.Context(), actor)
	h.list(w, txs, err)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request, actor *user.User) {
	txs, err := h.svc.ListMine(r.Context(), actor)
	h.list(w, txs, err)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request, actor *user.User) {
	txs, err := h.svc.ListPending(r.Context(), actor)
	h.list(w, txs, err)
}

func (h *Handler) listAssigned(w http.ResponseWriter, r *http.Request, actor *user.User) {
	txs, err := h.svc.ListAssigned(r.Context(), actor)
	h.list(w, txs, err)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.Get(r.Context(), actor, id)
	h.one(w, tx, err)
}

func (h *Handler) one(w http.ResponseWriter, tx *transaction.Transaction, err error) {
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(tx))
}

type acceptRequest struct {
	CashierPaymentMethodID *int64 `json:"cashier_payment_method_id,omitempty" validate:"omitempty,gt=0"`
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	var req acceptRequest
	if r.ContentLength > 0 {
		if err := render.Decode(r, &req); err != nil {
			render.Error(w, err)
			return
		}
	}

	tx, err := h.svc.Accept(r.Context(), actor, id, req.CashierPaymentMethodID)
	h.one(w, tx, err)
}

type paymentStartedRequest struct {
	ProofRef string `json:"proof_ref" validate:"omitempty,url"`
}

func (h *Handler) markPaymentStarted(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	var req paymentStartedRequest
	if r.ContentLength > 0 {
		if err := render.Decode(r, &req); err != nil {
			render.Error(w, err)
			return
		}
	}

	tx, err := h.svc.MarkPaymentStarted(r.Context(), actor, id, req.ProofRef)
	h.one(w, tx, err)
}

func (h *Handler) markCompleted(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.MarkCompleted(r.Context(), actor, id)
	h.one(w, tx, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.Cancel(r.Context(), actor, id)
	h.one(w, tx, err)
}

type disputeRequest struct {
	Reason      string `json:"reason" validate:"required,max=1000"`
	EvidenceURL string `json:"evidence_url" validate:"omitempty,url"`
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	var req disputeRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.OpenDispute(r.Context(), actor, id, req.Reason, req.EvidenceURL)
	h.one(w, tx, err)
}

type resolveRequest struct {
	State    transaction.State `json:"state" validate:"required,oneof=completed cancelled"`
	Decision string            `json:"decision" validate:"max=1000"`
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	var req resolveRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.svc.ResolveDispute(r.Context(), actor, id, req.State, req.Decision)
	h.one(w, tx, err)
}

func (h *Handler) listMyDisputes(w http.ResponseWriter, r *http.Request, actor *user.User) {
	disputes, err := h.svc.ListMyDisputes(r.Context(), actor)
	h.disputes(w, disputes, err)
}

func (h *Handler) listAllDisputes(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var openOnly bool

	if v := r.URL.Query().Get("open"); v != "" {
		var err error
		if openOnly, err = strconv.ParseBool(v); err != nil {
			render.Error(w, fmt.Errorf("%w: open must be a boolean", render.ErrBadRequest))
			return
		}
	}

	disputes, err := h.svc.ListAllDisputes(r.Context(), actor, openOnly)
	h.disputes(w, disputes, err)
}

func (h *Handler) disputes(w http.ResponseWriter, disputes []*transaction.Dispute, err error) {
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := make([]disputeResponse, len(disputes))
	for i, d := range disputes {
		resp[i] = toDispute(d)
	}

	render.JSON(w, http.StatusOK, resp)
}

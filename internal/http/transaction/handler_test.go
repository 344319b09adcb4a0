package transaction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/cambio/internal/auth"
	txhttp "github.com/MrJamesThe3rd/cambio/internal/http/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

var (
	seller   = &user.User{ID: 1, FullName: "Sofía Vendedora", Role: user.RoleSeller}
	admin    = &user.User{ID: 9, FullName: "Ana Admin", Role: user.RoleAdmin}
	cashier  = &user.User{ID: 2, FullName: "Carlos Cajero", Role: user.RoleCashier, Available: true}
	sellerPM = &user.PaymentMethod{ID: 10, OwnerID: 1, AccountType: "savings", AccountNumber: "0001", HolderName: "Sofía"}
)

func newRouter(t *testing.T, actor *user.User, setup func(repo *transaction.MockRepository, methods *transaction.MockPaymentMethods)) http.Handler {
	t.Helper()

	ctrl := gomock.NewController(t)

	repo := transaction.NewMockRepository(ctrl)
	methods := transaction.NewMockPaymentMethods(ctrl)

	if setup != nil {
		setup(repo, methods)
	}

	svc := transaction.NewService(repo, methods, decimal.RequireFromString("0.02"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), actor)))
		})
	})
	h := txhttp.NewHandler(svc)
	r.Route("/transactions", h.Routes)
	r.Route("/disputes", h.DisputeRoutes)

	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestHandler_Request(t *testing.T) {
	type testCase struct {
		name       string
		body       string
		setup      func(repo *transaction.MockRepository, methods *transaction.MockPaymentMethods)
		wantStatus int
	}

	tests := []testCase{
		{
			name: "Created",
			body: `{"operation":"deposit","amount":"100","currency":"USD","payment_method_id":10,"fee_option":"subtract"}`,
			setup: func(repo *transaction.MockRepository, methods *transaction.MockPaymentMethods) {
				methods.EXPECT().PaymentMethod(gomock.Any(), int64(10)).Return(sellerPM, nil)
				repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, tx *transaction.Transaction) error {
						tx.ID = 42
						tx.RequestedAt = time.Now()

						return nil
					})
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "MalformedJSON",
			body:       `{"operation":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "UnknownOperation",
			body:       `{"operation":"swap","amount":"100","currency":"USD","payment_method_id":10,"fee_option":"add"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "NegativeAmount",
			body:       `{"operation":"deposit","amount":"-5","currency":"USD","payment_method_id":10,"fee_option":"add"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, seller, tt.setup)

			rec := do(h, http.MethodPost, "/transactions", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusCreated {
				return
			}

			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))

			assert.Equal(t, float64(42), got["id"])
			assert.Equal(t, "pending", got["state"])
			assert.Equal(t, "2", got["gross_fee"])
			assert.Equal(t, "98", got["net_amount"])
			assert.NotContains(t, got, "cashier")
		})
	}
}

func TestHandler_Accept(t *testing.T) {
	pending := &transaction.Transaction{ID: 42, Seller: seller, Operation: transaction.OperationDeposit, State: transaction.StatePending}
	accepted := *pending
	accepted.State = transaction.StateAccepted
	accepted.Cashier = cashier

	type testCase struct {
		name       string
		setup      func(repo *transaction.MockRepository, methods *transaction.MockPaymentMethods)
		wantStatus int
	}

	tests := []testCase{
		{
			name: "Accepted",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				gomock.InOrder(
					repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(pending, nil),
					repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, c transaction.Change) error {
							assert.Equal(t, transaction.StatePending, c.From)
							assert.Equal(t, transaction.StateAccepted, c.To)
							assert.Equal(t, cashier.ID, *c.CashierID)

							return nil
						}),
					repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(&accepted, nil),
				)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "LostRace",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(pending, nil)
				repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(transaction.ErrConflict)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "AlreadyTaken",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(&accepted, nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "Missing",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(nil, transaction.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, cashier, tt.setup)

			rec := do(h, http.MethodPost, "/transactions/42/accept", "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_GuardViolations(t *testing.T) {
	accepted := &transaction.Transaction{
		ID: 42, Seller: seller, Cashier: cashier,
		Operation: transaction.OperationDeposit, State: transaction.StateAccepted,
	}

	h := newRouter(t, cashier, func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
		repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(accepted, nil).Times(2)
	})

	// The cashier is the payee on a deposit.
	rec := do(h, http.MethodPost, "/transactions/42/payment-started", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodPost, "/transactions/42/complete", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_BadID(t *testing.T) {
	h := newRouter(t, seller, nil)

	rec := do(h, http.MethodGet, "/transactions/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListPendingAsSeller(t *testing.T) {
	h := newRouter(t, seller, nil)

	rec := do(h, http.MethodGet, "/transactions/pending", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_ListMine(t *testing.T) {
	h := newRouter(t, seller, func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
		repo.EXPECT().ListTransactions(gomock.Any(), transaction.ListFilter{SellerID: &seller.ID}).
			Return([]*transaction.Transaction{
				{ID: 1, Seller: seller, State: transaction.StatePending, Amount: decimal.NewFromInt(5)},
			}, nil)
	})

	rec := do(h, http.MethodGet, "/transactions/mine", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0]["amount"])
}

func TestHandler_Dispute(t *testing.T) {
	accepted := &transaction.Transaction{
		ID: 42, Seller: seller, Cashier: cashier,
		Operation: transaction.OperationWithdrawal, State: transaction.StateAccepted,
	}
	disputed := *accepted
	disputed.State = transaction.StateDisputed

	h := newRouter(t, seller, func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
		gomock.InOrder(
			repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(accepted, nil),
			repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, c transaction.Change) error {
					require.NotNil(t, c.Dispute)
					assert.Equal(t, "never paid", c.Dispute.Reason)

					return nil
				}),
			repo.EXPECT().GetTransaction(gomock.Any(), int64(42)).Return(&disputed, nil),
		)
	})

	rec := do(h, http.MethodPost, "/transactions/42/dispute", `{"reason":"never paid"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/transactions/42/dispute", `{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListDisputes(t *testing.T) {
	opened := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dispute := &transaction.Dispute{
		ID: 7, TransactionID: 42, ReporterID: seller.ID,
		Reason: "never paid", EvidenceURL: "https://example.com/a.png", OpenedAt: opened,
	}

	type testCase struct {
		name       string
		actor      *user.User
		path       string
		setup      func(repo *transaction.MockRepository, methods *transaction.MockPaymentMethods)
		wantStatus int
		wantLen    int
	}

	tests := []testCase{
		{
			name:  "MineAsSeller",
			actor: seller,
			path:  "/disputes/mine",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().ListDisputes(gomock.Any(), transaction.DisputeFilter{PartyID: &seller.ID}).
					Return([]*transaction.Dispute{dispute}, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    1,
		},
		{
			name:  "AllAsAdmin",
			actor: admin,
			path:  "/disputes",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().ListDisputes(gomock.Any(), transaction.DisputeFilter{}).
					Return([]*transaction.Dispute{dispute}, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    1,
		},
		{
			name:  "OpenOnlyAsAdmin",
			actor: admin,
			path:  "/disputes?open=true",
			setup: func(repo *transaction.MockRepository, _ *transaction.MockPaymentMethods) {
				repo.EXPECT().ListDisputes(gomock.Any(), transaction.DisputeFilter{OpenOnly: true}).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "AllAsSeller", actor: seller, path: "/disputes", wantStatus: http.StatusForbidden},
		{name: "BadOpenFlag", actor: admin, path: "/disputes?open=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, tt.actor, tt.setup)

			rec := do(h, http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusOK {
				return
			}

			var got []map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			require.Len(t, got, tt.wantLen)

			if tt.wantLen > 0 {
				assert.Equal(t, "never paid", got[0]["reason"])
				assert.Equal(t, "https://example.com/a.png", got[0]["evidence_url"])
				assert.EqualValues(t, 42, got[0]["transaction_id"])
				assert.NotContains(t, got[0], "resolution")
			}
		})
	}
}

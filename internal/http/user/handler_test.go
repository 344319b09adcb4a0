package user_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/cambio/internal/auth"
	userhttp "github.com/MrJamesThe3rd/cambio/internal/http/user"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

func newRouter(t *testing.T, actor *user.User, setup func(repo *user.MockRepository)) http.Handler {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := user.NewMockRepository(ctrl)

	if setup != nil {
		setup(repo)
	}

	h := userhttp.NewHandler(user.NewService(repo))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), actor)))
		})
	})
	r.Route("/users", h.Routes)
	r.Route("/payment-methods", h.PaymentMethodRoutes)

	return r
}

func TestHandler_Me(t *testing.T) {
	h := newRouter(t, &user.User{ID: 2, FullName: "Carlos", Role: user.RoleCashier, Available: true}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "cashier", got["role"])
	assert.Equal(t, true, got["available"])
}

func TestHandler_SetAvailability(t *testing.T) {
	type testCase struct {
		name       string
		actor      *user.User
		body       string
		setup      func(repo *user.MockRepository)
		wantStatus int
	}

	tests := []testCase{
		{
			name:  "Cashier",
			actor: &user.User{ID: 2, Role: user.RoleCashier},
			body:  `{"available":true}`,
			setup: func(repo *user.MockRepository) {
				repo.EXPECT().SetAvailability(gomock.Any(), int64(2), true).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Seller",
			actor:      &user.User{ID: 1, Role: user.RoleSeller},
			body:       `{"available":true}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "MissingField",
			actor:      &user.User{ID: 2, Role: user.RoleCashier},
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, tt.actor, tt.setup)

			req := httptest.NewRequest(http.MethodPost, "/users/me/availability", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_PaymentMethods(t *testing.T) {
	h := newRouter(t, &user.User{ID: 1, Role: user.RoleSeller}, func(repo *user.MockRepository) {
		repo.EXPECT().ListPaymentMethods(gomock.Any(), int64(1)).Return([]*user.PaymentMethod{
			{ID: 10, OwnerID: 1, AccountType: "savings", AccountNumber: "0001", HolderName: "Sofía", Status: "active"},
		}, nil)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment-methods", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(10), got[0]["id"])
}

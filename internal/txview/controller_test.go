package txview_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/txview"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	seller  = &user.User{ID: 1, Role: user.RoleSeller}
	cashier = &user.User{ID: 2, Role: user.RoleCashier, Available: true}
	rival   = &user.User{ID: 3, Role: user.RoleCashier, Available: true}
	admin   = &user.User{ID: 9, Role: user.RoleAdmin}
)

func pending(id int64) *transaction.Transaction {
	return &transaction.Transaction{ID: id, Seller: seller, Operation: transaction.OperationDeposit, State: transaction.StatePending}
}

func withState(tx *transaction.Transaction, state transaction.State, c *user.User) *transaction.Transaction {
	next := *tx
	next.State = state
	next.Cashier = c

	return &next
}

func TestController_Actions(t *testing.T) {
	type testCase struct {
		name string
		me   *user.User
		tx   *transaction.Transaction
		want []transaction.Action
	}

	tests := []testCase{
		{name: "SellerPending", me: seller, tx: pending(1), want: []transaction.Action{transaction.ActionCancel}},
		{name: "CashierPending", me: cashier, tx: pending(1), want: []transaction.Action{transaction.ActionAccept}},
		{
			name: "SellerAcceptedDeposit",
			me:   seller,
			tx:   withState(pending(1), transaction.StateAccepted, cashier),
			want: []transaction.Action{transaction.ActionMarkPaymentStarted, transaction.ActionOpenDispute},
		},
		{name: "AdminDisputed", me: admin, tx: withState(pending(1), transaction.StateDisputed, cashier), want: []transaction.Action{transaction.ActionResolveDispute}},
		{name: "SellerCompleted", me: seller, tx: withState(pending(1), transaction.StateCompleted, cashier)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			c := txview.New(txview.NewMockService(ctrl), tt.me, discard)
			assert.Equal(t, tt.want, c.Actions(tt.tx))
		})
	}
}

func TestController_InvokeRefusesLocally(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, cashier, discard)

	tx := pending(1)

	// No service call is expected: the cashier may not cancel.
	got, err := c.Invoke(context.Background(), tx, transaction.ActionCancel, txview.Input{})
	require.ErrorIs(t, err, txview.ErrActionNotAllowed)
	require.ErrorIs(t, err, transaction.ErrForbidden)
	assert.Nil(t, got)
	assert.ErrorIs(t, c.Err(), txview.ErrActionNotAllowed)
	assert.Equal(t, transaction.StatePending, tx.State)
}

func TestController_InvokeReplacesSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, cashier, discard)
	ctx := context.Background()

	tx := pending(1)
	accepted := withState(tx, transaction.StateAccepted, cashier)

	gomock.InOrder(
		svc.EXPECT().ListPending(gomock.Any()).Return([]*transaction.Transaction{tx}, nil),
		svc.EXPECT().ListAssigned(gomock.Any()).Return(nil, nil),
		svc.EXPECT().Accept(gomock.Any(), int64(1), nil).Return(accepted, nil),
		svc.EXPECT().ListPending(gomock.Any()).Return(nil, nil),
		svc.EXPECT().ListAssigned(gomock.Any()).Return([]*transaction.Transaction{accepted}, nil),
	)

	require.NoError(t, c.Refresh(ctx))
	require.Len(t, c.Pending(), 1)

	got, err := c.Invoke(ctx, tx, transaction.ActionAccept, txview.Input{})
	require.NoError(t, err)
	assert.Same(t, accepted, got)
	assert.Equal(t, transaction.StatePending, tx.State, "the old snapshot is never mutated")

	assert.Empty(t, c.Pending())
	require.Len(t, c.Assigned(), 1)
	assert.Equal(t, transaction.StateAccepted, c.Assigned()[0].State)
	assert.NoError(t, c.Err())
	assert.False(t, c.Busy(1))
}

func TestController_AcceptConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, rival, discard)
	ctx := context.Background()

	tx := pending(1)
	other := pending(2)

	gomock.InOrder(
		svc.EXPECT().ListPending(gomock.Any()).Return([]*transaction.Transaction{tx, other}, nil),
		svc.EXPECT().ListAssigned(gomock.Any()).Return(nil, nil),
		svc.EXPECT().Accept(gomock.Any(), int64(1), nil).Return(nil, transaction.ErrConflict),
		svc.EXPECT().ListPending(gomock.Any()).Return([]*transaction.Transaction{other}, nil),
		svc.EXPECT().ListAssigned(gomock.Any()).Return(nil, nil),
	)

	require.NoError(t, c.Refresh(ctx))

	_, err := c.Invoke(ctx, tx, transaction.ActionAccept, txview.Input{})
	require.ErrorIs(t, err, transaction.ErrConflict)
	assert.ErrorIs(t, c.Err(), transaction.ErrConflict)

	require.Len(t, c.Pending(), 1)
	assert.Equal(t, int64(2), c.Pending()[0].ID)
}

func TestController_RejectionResyncs(t *testing.T) {
	type testCase struct {
		name string
		err  error
	}

	tests := []testCase{
		{name: "InvalidTransition", err: transaction.ErrInvalidTransition},
		{name: "Forbidden", err: transaction.ErrForbidden},
		{name: "Conflict", err: transaction.ErrConflict},
		{name: "NotFound", err: transaction.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := txview.NewMockService(ctrl)
			c := txview.New(svc, seller, discard)
			ctx := context.Background()

			stale := withState(pending(1), transaction.StateAccepted, cashier)
			current := withState(pending(1), transaction.StateCompleted, cashier)

			gomock.InOrder(
				svc.EXPECT().ListMine(gomock.Any()).Return([]*transaction.Transaction{stale}, nil),
				svc.EXPECT().MarkPaymentStarted(gomock.Any(), int64(1), "ref-1").Return(nil, tt.err),
				svc.EXPECT().ListMine(gomock.Any()).Return([]*transaction.Transaction{current}, nil),
			)

			require.NoError(t, c.Refresh(ctx))

			_, err := c.Invoke(ctx, stale, transaction.ActionMarkPaymentStarted, txview.Input{ProofRef: "ref-1"})
			require.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, c.Err(), tt.err)

			require.Len(t, c.Mine(), 1)
			assert.Equal(t, transaction.StateCompleted, c.Mine()[0].State)
			assert.Empty(t, c.Actions(c.Mine()[0]))
			assert.Equal(t, transaction.StateAccepted, stale.State)
		})
	}
}

func TestController_TransportFailureKeepsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, seller, discard)
	ctx := context.Background()

	tx := withState(pending(1), transaction.StateAccepted, cashier)
	offline := errors.New("connection refused")

	svc.EXPECT().ListMine(gomock.Any()).Return([]*transaction.Transaction{tx}, nil)
	svc.EXPECT().MarkPaymentStarted(gomock.Any(), int64(1), "ref-1").Return(nil, offline)

	require.NoError(t, c.Refresh(ctx))

	_, err := c.Invoke(ctx, tx, transaction.ActionMarkPaymentStarted, txview.Input{ProofRef: "ref-1"})
	require.ErrorIs(t, err, offline)

	require.Len(t, c.Mine(), 1)
	assert.Same(t, tx, c.Mine()[0])
}

func TestController_InFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, seller, discard)
	ctx := context.Background()

	tx := pending(1)
	started := make(chan struct{})
	release := make(chan struct{})

	svc.EXPECT().Cancel(gomock.Any(), int64(1)).DoAndReturn(func(context.Context, int64) (*transaction.Transaction, error) {
		close(started)
		<-release

		return withState(tx, transaction.StateCancelled, nil), nil
	})
	svc.EXPECT().ListMine(gomock.Any()).Return(nil, nil)

	done := make(chan error, 1)

	go func() {
		_, err := c.Invoke(ctx, tx, transaction.ActionCancel, txview.Input{})
		done <- err
	}()

	<-started
	assert.True(t, c.Busy(1))

	_, err := c.Invoke(ctx, tx, transaction.ActionCancel, txview.Input{})
	require.ErrorIs(t, err, txview.ErrInFlight)

	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first request never finished")
	}

	assert.False(t, c.Busy(1))
}

func TestController_ResolveDispute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, admin, discard)

	tx := withState(pending(1), transaction.StateDisputed, cashier)

	svc.EXPECT().ResolveDispute(gomock.Any(), int64(1), transaction.StateCompleted, "paid").
		Return(withState(tx, transaction.StateCompleted, cashier), nil)
	svc.EXPECT().ListAll(gomock.Any()).Return(nil, nil)

	got, err := c.Invoke(context.Background(), tx, transaction.ActionResolveDispute, txview.Input{
		Resolution: transaction.StateCompleted,
		Decision:   "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.StateCompleted, got.State)
}

func TestController_RefreshError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, seller, discard)

	svc.EXPECT().ListMine(gomock.Any()).Return(nil, errors.New("offline"))

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, c.Err())
}

func TestController_RefreshDisputes(t *testing.T) {
	type testCase struct {
		name  string
		me    *user.User
		setup func(svc *txview.MockService, d *transaction.Dispute)
	}

	tests := []testCase{
		{
			name: "Admin",
			me:   admin,
			setup: func(svc *txview.MockService, d *transaction.Dispute) {
				svc.EXPECT().ListAllDisputes(gomock.Any(), false).Return([]*transaction.Dispute{d}, nil)
			},
		},
		{
			name: "Seller",
			me:   seller,
			setup: func(svc *txview.MockService, d *transaction.Dispute) {
				svc.EXPECT().ListMyDisputes(gomock.Any()).Return([]*transaction.Dispute{d}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := txview.NewMockService(ctrl)
			d := &transaction.Dispute{ID: 7, TransactionID: 1, ReporterID: seller.ID, Reason: "never paid"}
			tt.setup(svc, d)

			c := txview.New(svc, tt.me, discard)
			assert.Nil(t, c.Dispute(1))

			require.NoError(t, c.RefreshDisputes(context.Background()))
			assert.Same(t, d, c.Dispute(1))
			assert.Nil(t, c.Dispute(2))
		})
	}
}

func TestController_RefreshDisputesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := txview.NewMockService(ctrl)
	c := txview.New(svc, cashier, discard)

	svc.EXPECT().ListMyDisputes(gomock.Any()).Return(nil, errors.New("offline"))

	err := c.RefreshDisputes(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, c.Err())
}

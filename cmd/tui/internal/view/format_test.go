package view_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/cambio/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	type testCase struct {
		name string
		at   time.Time
		want string
	}

	tests := []testCase{
		{name: "Zero", at: time.Time{}, want: "-"},
		{name: "JustNow", at: now.Add(-20 * time.Second), want: "just now"},
		{name: "Minutes", at: now.Add(-5 * time.Minute), want: "5m ago"},
		{name: "Hours", at: now.Add(-3 * time.Hour), want: "3h ago"},
		{name: "Days", at: now.Add(-50 * time.Hour), want: "2d ago"},
		{name: "Old", at: time.Date(2026, 1, 2, 12, 0, 0, 0, time.Local), want: "2026-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, view.FormatAge(tt.at, now))
		})
	}
}

func TestFormatAmount_UnknownCurrency(t *testing.T) {
	assert.Equal(t, "12.50 ???", view.FormatAmount(decimal.RequireFromString("12.5"), "???"))
}

func TestFormatAmount_KnownCurrency(t *testing.T) {
	got := view.FormatAmount(decimal.NewFromInt(12), "USD")
	assert.Contains(t, got, "12")
	assert.NotContains(t, got, "???")
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Payment Started", view.StateLabel(transaction.StatePaymentStarted))
	assert.Equal(t, "Open Dispute", view.ActionLabel(transaction.ActionOpenDispute))
}

func TestConnIndicator(t *testing.T) {
	assert.Contains(t, view.ConnIndicator(realtime.StateConnected), "connected")
	assert.Contains(t, view.ConnIndicator(realtime.StateDisconnected), "disconnected")
}

func TestDisputeSummary(t *testing.T) {
	cashier := &user.User{ID: 2, Role: user.RoleCashier}
	tx := &transaction.Transaction{ID: 42, Seller: &user.User{ID: 1, Role: user.RoleSeller}, Cashier: cashier}
	completed := transaction.StateCompleted

	type testCase struct {
		name    string
		dispute *transaction.Dispute
		want    string
	}

	tests := []testCase{
		{
			name:    "BySeller",
			dispute: &transaction.Dispute{ReporterID: 1, Reason: "never paid", EvidenceURL: "https://example.com/a.png"},
			want:    "Seller: never paid\nEvidence: https://example.com/a.png",
		},
		{
			name:    "ByCashierResolved",
			dispute: &transaction.Dispute{ReporterID: 2, Reason: "wrong account", Resolution: &completed, Decision: "paid late"},
			want:    "Cashier: wrong account\nResolved as Completed: paid late",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, view.DisputeSummary(tx, tt.dispute))
		})
	}
}

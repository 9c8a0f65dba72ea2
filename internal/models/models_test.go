package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlanDuration(t *testing.T) {
	tests := []struct {
		plan   string
		want   time.Duration
		wantOK bool
	}{
		{plan: PlanOneMonth, want: 30 * 24 * time.Hour, wantOK: true},
		{plan: PlanThreeMonths, want: 90 * 24 * time.Hour, wantOK: true},
		{plan: PlanSixMonths, want: 180 * 24 * time.Hour, wantOK: true},
		{plan: PlanTwelveMonth, want: 365 * 24 * time.Hour, wantOK: true},
		{plan: "lifetime", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			got, ok := PlanDuration(tt.plan)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubscription_IsActiveAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	active := &Subscription{Status: SubscriptionActive, EndDate: now.Add(time.Hour)}
	lapsed := &Subscription{Status: SubscriptionActive, EndDate: now.Add(-time.Hour)}
	expired := &Subscription{Status: SubscriptionExpired, EndDate: now.Add(time.Hour)}

	assert.True(t, active.IsActiveAt(now))
	assert.False(t, lapsed.IsActiveAt(now), "stored status must be reconciled with wall clock")
	assert.False(t, expired.IsActiveAt(now))
}

func TestLoginSession_IsExpiredAt(t *testing.T) {
	now := time.Now()
	s := &LoginSession{ExpiresAt: now}
	assert.True(t, s.IsExpiredAt(now))
	assert.False(t, s.IsExpiredAt(now.Add(-time.Second)))
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.True(t, PaymentCompleted.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())
}

func TestUser_PublicAndProvisioningName(t *testing.T) {
	u := &User{ID: "u-1", TelegramID: 42, Username: "neo", FirstName: "Thomas"}
	p := u.Public(true)
	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, int64(42), p.TelegramID)
	assert.True(t, p.IsNewUser)
	assert.Equal(t, "tg_42", u.ProvisioningName())
}

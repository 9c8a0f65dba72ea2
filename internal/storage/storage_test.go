package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage/storagetest"
)

func createUser(t *testing.T, st *storage.Storage, telegramID int64, referrerID *string) *models.User {
	t.Helper()
	u := &models.User{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Username:   "user",
		FirstName:  "First",
		ReferrerID: referrerID,
	}
	created, err := st.InsertUser(context.Background(), u)
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func TestStorage(t *testing.T) {
	st := storagetest.New(t)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		referrer := createUser(t, st, 1001, nil)
		u := createUser(t, st, 1002, &referrer.ID)

		dup := &models.User{ID: uuid.NewString(), TelegramID: 1002}
		created, err := st.InsertUser(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created, "second insert for the same telegram id must be ignored")

		got, err := st.GetUserByTelegramID(ctx, 1002)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		require.NotNil(t, got.ReferrerID)
		assert.Equal(t, referrer.ID, *got.ReferrerID)

		updated, err := st.UpdateProfile(ctx, models.Profile{TelegramID: 1002, Username: "renamed", PhotoURL: "https://p"})
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Username)
		assert.Equal(t, "https://p", updated.PhotoURL)
		assert.Equal(t, referrer.ID, *updated.ReferrerID)

		_, err = st.GetUserByTelegramID(ctx, 999999)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, st.CreditBalance(ctx, referrer.ID, 5000))
		ok, err := st.MarkReferralBonusPaid(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = st.MarkReferralBonusPaid(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err = st.GetUserByID(ctx, referrer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), got.Balance)
	})

	t.Run("login sessions", func(t *testing.T) {
		u := createUser(t, st, 2001, nil)
		now := time.Now()

		require.NoError(t, st.CreateLoginSession(ctx, "tok-live", now.Add(5*time.Minute)))
		require.NoError(t, st.CreateLoginSession(ctx, "tok-dead", now.Add(-time.Second)))

		ok, err := st.ApproveLoginSession(ctx, "tok-live", u.TelegramID, u.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = st.ApproveLoginSession(ctx, "tok-live", u.TelegramID, u.ID, now)
		require.NoError(t, err)
		assert.False(t, ok, "approved session cannot be approved twice")

		ok, err = st.ApproveLoginSession(ctx, "tok-dead", u.TelegramID, u.ID, now)
		require.NoError(t, err)
		assert.False(t, ok, "expired session cannot be approved")

		require.NoError(t, st.ExpireLoginSession(ctx, "tok-dead"))
		require.NoError(t, st.ExpireLoginSession(ctx, "tok-live"))

		live, err := st.GetLoginSession(ctx, "tok-live")
		require.NoError(t, err)
		assert.Equal(t, models.LoginSessionApproved, live.Status)
		require.NotNil(t, live.UserID)
		assert.Equal(t, u.ID, *live.UserID)

		dead, err := st.GetLoginSession(ctx, "tok-dead")
		require.NoError(t, err)
		assert.Equal(t, models.LoginSessionExpired, dead.Status)

		n, err := st.DeleteLoginSessionsBefore(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(2))

		_, err = st.GetLoginSession(ctx, "tok-live")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("subscriptions and payments", func(t *testing.T) {
		u := createUser(t, st, 3001, nil)
		now := time.Now().UTC().Truncate(time.Second)

		oldID, err := st.CreateSubscription(ctx, &models.Subscription{
			UserID: u.ID, Plan: models.PlanOneMonth, Status: models.SubscriptionActive,
			StartDate: now.Add(-40 * 24 * time.Hour), EndDate: now.Add(-10 * 24 * time.Hour),
		})
		require.NoError(t, err)
		newID, err := st.CreateSubscription(ctx, &models.Subscription{
			UserID: u.ID, Plan: models.PlanThreeMonths, Status: models.SubscriptionActive,
			StartDate: now, EndDate: now.Add(90 * 24 * time.Hour),
		})
		require.NoError(t, err)

		latest, err := st.LatestSubscription(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, newID, latest.ID)

		overdue, err := st.ListOverdueActive(ctx, now, 100)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, oldID, overdue[0].SubscriptionID)
		assert.Equal(t, u.TelegramID, overdue[0].TelegramID)

		ok, err := st.MarkSubscriptionExpired(ctx, oldID, now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = st.MarkSubscriptionExpired(ctx, newID, now)
		require.NoError(t, err)
		assert.False(t, ok, "subscription ending in the future stays active")

		expiring, err := st.ListExpiringBetween(ctx, now, now.Add(91*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, expiring, 1)
		assert.Equal(t, newID, expiring[0].SubscriptionID)

		payID, err := st.CreatePayment(ctx, &models.Payment{
			UserID: u.ID, Amount: 29900, Currency: "RUB", GatewayOrderID: "order-3001", Plan: models.PlanOneMonth,
		})
		require.NoError(t, err)

		ok, err = st.SetPaymentStatus(ctx, payID, models.PaymentCompleted)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = st.SetPaymentStatus(ctx, payID, models.PaymentFailed)
		require.NoError(t, err)
		assert.False(t, ok, "terminal status is set once")

		require.NoError(t, st.LinkPaymentSubscription(ctx, payID, newID))
		p, err := st.GetPaymentByOrderID(ctx, "order-3001")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, p.Status)
		require.NotNil(t, p.SubscriptionID)
		assert.Equal(t, newID, *p.SubscriptionID)

		_, err = st.GetPaymentByOrderID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = st.CreatePayment(ctx, &models.Payment{
			UserID: u.ID, Amount: 79900, Currency: "RUB", GatewayOrderID: "order-3002", Plan: models.PlanThreeMonths,
		})
		require.NoError(t, err)
		list, err := st.ListPaymentsByUser(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "order-3002", list[0].GatewayOrderID)
		assert.Equal(t, models.PaymentPending, list[0].Status)
		assert.Equal(t, "order-3001", list[1].GatewayOrderID)

		list, err = st.ListPaymentsByUser(ctx, u.ID, 1)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		errBoom := errors.New("boom")
		id := uuid.NewString()

		err := st.WithinTx(ctx, func(ctx context.Context) error {
			_, err := st.InsertUser(ctx, &models.User{ID: id, TelegramID: 4001})
			require.NoError(t, err)
			_, err = st.LockUser(ctx, id)
			require.NoError(t, err)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		_, err = st.GetUserByID(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

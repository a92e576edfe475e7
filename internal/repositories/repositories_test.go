package repositories_test

import (
	"testing"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		Role:         models.UserRoleCustomer,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, repositories.NewUserRepository().Create(db, user))
	return user
}

func createSubscription(t *testing.T, db *gorm.DB, userID string, status models.SubscriptionStatus, end time.Time) *models.Subscription {
	t.Helper()
	plan := &models.Plan{Name: "Cow 6", SubscriptionType: "cow_milk", Duration: "6days", Price: 360, IsActive: true}
	require.NoError(t, repositories.NewPlanRepository().Create(db, plan))

	sub := &models.Subscription{
		UserID:           userID,
		PlanID:           plan.ID,
		Status:           status,
		SubscriptionType: "cow_milk",
		Duration:         "6days",
		StartDate:        end.AddDate(0, 0, -7),
		EndDate:          end,
	}
	require.NoError(t, repositories.NewSubscriptionRepository().Create(db, sub))
	return sub
}

func TestUserRepository_Duplicates(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewUserRepository()

	phone := "9876543210"
	user := &models.User{Name: "A", Email: "a@test.com", Phone: &phone, PasswordHash: "x"}
	require.NoError(t, repo.Create(db, user))

	err := repo.Create(db, &models.User{Name: "B", Email: "a@test.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repositories.ErrUserAlreadyExists)

	samePhone := "9876543210"
	err = repo.Create(db, &models.User{Name: "C", Email: "c@test.com", Phone: &samePhone, PasswordHash: "x"})
	assert.ErrorIs(t, err, repositories.ErrPhoneAlreadyExists)

	found, err := repo.FindByPhone(db, phone)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByEmail(db, "missing@test.com")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
}

func TestUserRepository_UpdateProfileResetsVerification(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewUserRepository()
	user := createUser(t, db, "p@test.com")

	require.NoError(t, repo.SetPhoneVerified(db, user.ID))
	found, err := repo.FindByID(db, user.ID)
	require.NoError(t, err)
	assert.True(t, found.IsPhoneVerified)

	phone := "9123456789"
	require.NoError(t, repo.UpdateProfile(db, user.ID, "New Name", &phone))

	found, err = repo.FindByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", found.Name)
	assert.False(t, found.IsPhoneVerified)

	assert.ErrorIs(t, repo.SetPhoneVerified(db, "missing"), repositories.ErrUserNotFound)
}

func TestAddressRepository_Upsert(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewAddressRepository()
	user := createUser(t, db, "addr@test.com")

	_, err := repo.FindByUserID(db, user.ID)
	assert.ErrorIs(t, err, repositories.ErrAddressNotFound)

	require.NoError(t, repo.Upsert(db, &models.Address{UserID: user.ID, Line1: "Old street", City: "Pune", Pincode: "411001"}))
	require.NoError(t, repo.Upsert(db, &models.Address{UserID: user.ID, Line1: "New street", City: "Pune", Pincode: "411002"}))

	addr, err := repo.FindByUserID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "New street", addr.Line1)
	assert.Equal(t, "411002", addr.Pincode)

	var count int64
	db.Model(&models.Address{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestPlanRepository_ActiveOnly(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewPlanRepository()

	active := &models.Plan{Name: "Cow 6", SubscriptionType: "cow_milk", Duration: "6days", Price: 360, IsActive: true}
	hidden := &models.Plan{Name: "Cow 15", SubscriptionType: "cow_milk", Duration: "15days", Price: 900, IsActive: true}
	require.NoError(t, repo.Create(db, active))
	require.NoError(t, repo.Create(db, hidden))
	require.NoError(t, repo.SetActive(db, hidden.ID, false))

	plans, err := repo.FindActive(db)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, active.ID, plans[0].ID)

	all, err := repo.FindAll(db)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, repo.SetActive(db, "missing", true), repositories.ErrPlanNotFound)
}

func TestSubscriptionRepository_LatestAndSave(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewSubscriptionRepository()
	user := createUser(t, db, "sub@test.com")

	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	old := createSubscription(t, db, user.ID, models.SubscriptionStatusExpired, end)
	// created_at у второй строки должен быть позже
	time.Sleep(5 * time.Millisecond)
	latest := createSubscription(t, db, user.ID, models.SubscriptionStatusActive, end.AddDate(0, 0, 10))

	found, err := repo.FindLatestByUserID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)
	assert.NotEqual(t, old.ID, found.ID)

	pausedAt := time.Date(2024, 1, 12, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	found.Status = models.SubscriptionStatusPaused
	found.PausedAt = &pausedAt
	require.NoError(t, repo.Save(db, found))

	locked, err := repo.FindLatestByUserIDForUpdate(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, locked.Status)
	require.NotNil(t, locked.PausedAt)
	assert.True(t, pausedAt.Equal(*locked.PausedAt))

	open, err := repo.FindOpenByUserID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, open.ID)

	history, err := repo.FindByUserID(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = repo.FindLatestByUserID(db, "nobody")
	assert.ErrorIs(t, err, repositories.ErrSubscriptionNotFound)
}

func TestSubscriptionRepository_ExpireStale(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewSubscriptionRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	u1 := createUser(t, db, "s1@test.com")
	u2 := createUser(t, db, "s2@test.com")
	u3 := createUser(t, db, "s3@test.com")

	stale := createSubscription(t, db, u1.ID, models.SubscriptionStatusActive, now.AddDate(0, 0, -1))
	fresh := createSubscription(t, db, u2.ID, models.SubscriptionStatusActive, now.AddDate(0, 0, 2))
	paused := createSubscription(t, db, u3.ID, models.SubscriptionStatusPaused, now.AddDate(0, 0, -5))

	staleRows, err := repo.FindStale(db, now)
	require.NoError(t, err)
	require.Len(t, staleRows, 1)
	assert.Equal(t, stale.ID, staleRows[0].ID)
	assert.Equal(t, u1.ID, staleRows[0].UserID)

	ids := []string{staleRows[0].ID}

	n, err := repo.ExpireByIDs(db, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// повторный прогон ничего не меняет
	n, err = repo.ExpireByIDs(db, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := repo.FindByID(db, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, got.Status)

	got, err = repo.FindByID(db, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, got.Status)

	expiring, err := repo.FindExpiring(db, now, now.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, fresh.ID, expiring[0].ID)

	counts, err := repo.CountByStatus(db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.SubscriptionStatusExpired])
	assert.EqualValues(t, 1, counts[models.SubscriptionStatusActive])
	assert.EqualValues(t, 1, counts[models.SubscriptionStatusPaused])
}

func TestSubscriptionRepository_List(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewSubscriptionRepository()
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		u := createUser(t, db, "list"+string(rune('a'+i))+"@test.com")
		status := models.SubscriptionStatusActive
		if i%2 == 1 {
			status = models.SubscriptionStatusCancelled
		}
		createSubscription(t, db, u.ID, status, end)
	}

	subs, total, err := repo.List(db, repositories.SubscriptionFilter{Status: models.SubscriptionStatusActive, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, subs, 2)

	subs, total, err = repo.List(db, repositories.SubscriptionFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, subs, 1)
}

func TestPaymentRepository_RevenueAndLookup(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewPaymentRepository()
	user := createUser(t, db, "pay@test.com")
	now := time.Now().UTC()

	oldPaid := now.AddDate(0, 0, -40)
	recentPaid := now.AddDate(0, 0, -2)

	payments := []*models.PaymentTransaction{
		{UserID: user.ID, PlanID: "plan", OrderID: "order_1", Amount: 300, Status: models.PaymentStatusPaid, PaidAt: &oldPaid},
		{UserID: user.ID, PlanID: "plan", OrderID: "order_2", Amount: 500, Status: models.PaymentStatusPaid, PaidAt: &recentPaid},
		{UserID: user.ID, PlanID: "plan", OrderID: "order_3", Amount: 900, Status: models.PaymentStatusCreated},
	}
	for _, p := range payments {
		require.NoError(t, repo.Create(db, p))
	}

	stats, err := repo.GetRevenueStats(db, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.InDelta(t, 800.0, stats.Total, 0.001)
	assert.InDelta(t, 500.0, stats.LastPeriod, 0.001)
	assert.EqualValues(t, 2, stats.PaidCount)

	p, err := repo.FindByOrderIDForUpdate(db, "order_3")
	require.NoError(t, err)
	p.Status = models.PaymentStatusFailed
	require.NoError(t, repo.Update(db, p))

	p, err = repo.FindByOrderID(db, "order_3")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)

	_, err = repo.FindByOrderID(db, "order_missing")
	assert.ErrorIs(t, err, repositories.ErrPaymentNotFound)

	history, err := repo.FindByUserID(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestEventRepository(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewEventRepository()
	user := createUser(t, db, "ev@test.com")
	sub := createSubscription(t, db, user.ID, models.SubscriptionStatusActive, time.Now().AddDate(0, 0, 5))

	require.NoError(t, repo.Create(db, &models.SubscriptionEvent{
		SubscriptionID: sub.ID, UserID: user.ID, Action: models.ActionPurchased, ToStatus: models.SubscriptionStatusActive,
	}))
	require.NoError(t, repo.CreateBatch(db, []models.SubscriptionEvent{
		{SubscriptionID: sub.ID, UserID: user.ID, Action: models.ActionPaused,
			FromStatus: models.SubscriptionStatusActive, ToStatus: models.SubscriptionStatusPaused},
	}))

	events, err := repo.FindBySubscriptionID(db, sub.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)

	byUser, err := repo.FindByUserID(db, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestRefreshTokenRepository(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewRefreshTokenRepository()
	user := createUser(t, db, "rt@test.com")
	now := time.Now().UTC()

	require.NoError(t, repo.Create(db, &models.RefreshToken{UserID: user.ID, Token: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(db, &models.RefreshToken{UserID: user.ID, Token: "dead", ExpiresAt: now.Add(-time.Hour)}))

	n, err := repo.CleanExpired(db, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindByToken(db, "dead")
	assert.ErrorIs(t, err, repositories.ErrRefreshTokenNotFound)

	require.NoError(t, repo.DeleteByToken(db, "live"))
	assert.ErrorIs(t, repo.DeleteByToken(db, "live"), repositories.ErrRefreshTokenNotFound)
}

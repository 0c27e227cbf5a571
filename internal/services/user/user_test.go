package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/software-marketplace/internal/cache"
	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/password"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserBySequenceID(ctx context.Context, seq int64) (*models.User, error) {
	args := m.Called(ctx, seq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) AddRole(ctx context.Context, userID string, role models.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockRepository) SetRoles(ctx context.Context, userID string, roles []models.Role) error {
	args := m.Called(ctx, userID, roles)
	return args.Error(0)
}

func (m *MockRepository) SetLockout(ctx context.Context, userID string, end *time.Time) error {
	args := m.Called(ctx, userID, end)
	return args.Error(0)
}

func (m *MockRepository) GetSubscriptionType(ctx context.Context, id int64) (*models.SubscriptionType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionType), args.Error(1)
}

func (m *MockRepository) AddSubscription(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	if args.Error(0) == nil {
		sub.ID = 42
	}
	return args.Error(0)
}

func (m *MockRepository) CreateSoftware(ctx context.Context, name string) (*models.Software, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Software), args.Error(1)
}

func (m *MockRepository) CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *MockRepository, *cache.Cache, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(testNow)
	repo := new(MockRepository)
	c := cache.New(cache.NewMemory(clk), time.Hour, newNoopLogger(), nil)
	return New(repo, c, clk, newNoopLogger()), repo, c, clk
}

func testUser() *models.User {
	return &models.User{
		ID:             "6f1c2a7e-0d3b-4c55-8a9e-2b7d4e1f0a11",
		SequenceID:     12,
		Username:       "bob",
		Email:          "bob@example.com",
		EmailConfirmed: true,
		LockoutEnabled: true,
		Roles:          []models.Role{models.RoleUser},
	}
}

func TestGetUser_UsesCache(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()

	first, err := svc.GetUser(context.Background(), u.ID, true)
	require.NoError(t, err)
	second, err := svc.GetUser(context.Background(), u.ID, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	repo.AssertNumberOfCalls(t, "GetUserByID", 1)
}

func TestGetUser_BypassCache(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := svc.GetUser(context.Background(), u.ID, false)
		require.NoError(t, err)
	}
	repo.AssertNumberOfCalls(t, "GetUserByID", 2)
}

func TestGetUser_NotFoundIsNotCached(t *testing.T) {
	svc, repo, _, _ := setup(t)
	repo.On("GetUserByID", mock.Anything, "missing").
		Return(nil, repository.ErrUserNotFound).Twice()

	for i := 0; i < 2; i++ {
		_, err := svc.GetUser(context.Background(), "missing", true)
		require.ErrorIs(t, err, ErrUserNotFound)
	}
	repo.AssertNumberOfCalls(t, "GetUserByID", 2)
}

func TestGetUser_RepositoryError(t *testing.T) {
	svc, repo, _, _ := setup(t)
	repo.On("GetUserByID", mock.Anything, "id").Return(nil, errors.New("db down")).Once()

	_, err := svc.GetUser(context.Background(), "id", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestGetUserBySequenceID(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	repo.On("GetUserBySequenceID", mock.Anything, int64(12)).Return(u, nil).Once()

	got, err := svc.GetUserBySequenceID(context.Background(), 12, true)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetUserBySequenceID(context.Background(), 12, true)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetUserBySequenceID", 1)
}

func TestRemoveUserFromCache_EvictsBothKeys(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Twice()
	repo.On("GetUserBySequenceID", mock.Anything, u.SequenceID).Return(u, nil).Twice()

	ctx := context.Background()
	_, err := svc.GetUser(ctx, u.ID, true)
	require.NoError(t, err)
	_, err = svc.GetUserBySequenceID(ctx, u.SequenceID, true)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUserFromCache(ctx, u))

	_, err = svc.GetUser(ctx, u.ID, true)
	require.NoError(t, err)
	_, err = svc.GetUserBySequenceID(ctx, u.SequenceID, true)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestClearCache(t *testing.T) {
	svc, repo, c, _ := setup(t)
	u := testUser()
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Twice()

	ctx := context.Background()
	_, err := svc.GetUser(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, c.IndexedKeys())

	require.NoError(t, svc.ClearCache(ctx))
	assert.Equal(t, 0, c.IndexedKeys())

	_, err = svc.GetUser(ctx, u.ID, true)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetUserByID", 2)
}

func TestAddSubscriptionToUser(t *testing.T) {
	st := &models.SubscriptionType{ID: 3, SoftwareID: 1, SoftwareName: "Editor", Name: "Monthly", LengthInDays: 30}

	t.Run("grants subscription and subscriber role", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("GetSubscriptionType", mock.Anything, int64(3)).Return(st, nil).Once()
		repo.On("AddSubscription", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
			return s.UserID == u.ID && s.SubscriptionTypeID == 3 &&
				s.StartDate.Equal(testNow) && s.EndDate.Equal(testNow.AddDate(0, 0, 30))
		})).Return(nil).Once()
		repo.On("AddRole", mock.Anything, u.ID, models.RoleSubscriber).Return(nil).Once()

		sub, err := svc.AddSubscriptionToUser(context.Background(), u.ID, 3)
		require.NoError(t, err)
		assert.EqualValues(t, 42, sub.ID)
		assert.True(t, sub.IsActive(testNow))
		assert.Equal(t, "Editor", sub.SoftwareName)
		repo.AssertExpectations(t)
	})

	t.Run("role granted even when snapshot already holds it", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		u.Roles = append(u.Roles, models.RoleSubscriber)
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("GetSubscriptionType", mock.Anything, int64(3)).Return(st, nil).Once()
		repo.On("AddSubscription", mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("AddRole", mock.Anything, u.ID, models.RoleSubscriber).Return(nil).Once()

		_, err := svc.AddSubscriptionToUser(context.Background(), u.ID, 3)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("revoke between read and insert does not lose the role", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		u.Roles = append(u.Roles, models.RoleSubscriber)
		stored := map[models.Role]bool{models.RoleUser: true, models.RoleSubscriber: true}

		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("GetSubscriptionType", mock.Anything, int64(3)).Return(st, nil).Once()
		// Сверка снимает роль, пока вставляется подписка.
		repo.On("AddSubscription", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { delete(stored, models.RoleSubscriber) }).
			Return(nil).Once()
		repo.On("AddRole", mock.Anything, u.ID, models.RoleSubscriber).
			Run(func(args mock.Arguments) { stored[args.Get(2).(models.Role)] = true }).
			Return(nil).Once()

		sub, err := svc.AddSubscriptionToUser(context.Background(), u.ID, 3)
		require.NoError(t, err)
		assert.True(t, sub.IsActive(testNow))
		assert.True(t, stored[models.RoleSubscriber])
	})

	t.Run("invalidates cached user", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil)
		repo.On("GetSubscriptionType", mock.Anything, int64(3)).Return(st, nil).Once()
		repo.On("AddSubscription", mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("AddRole", mock.Anything, u.ID, models.RoleSubscriber).Return(nil).Once()

		ctx := context.Background()
		_, err := svc.GetUser(ctx, u.ID, true)
		require.NoError(t, err)
		_, err = svc.AddSubscriptionToUser(ctx, u.ID, 3)
		require.NoError(t, err)
		_, err = svc.GetUser(ctx, u.ID, true)
		require.NoError(t, err)

		repo.AssertNumberOfCalls(t, "GetUserByID", 3)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("GetUserByID", mock.Anything, "missing").Return(nil, repository.ErrUserNotFound).Once()

		_, err := svc.AddSubscriptionToUser(context.Background(), "missing", 3)
		require.ErrorIs(t, err, ErrUserNotFound)
		repo.AssertNotCalled(t, "GetSubscriptionType", mock.Anything, mock.Anything)
	})

	t.Run("unknown subscription type", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("GetSubscriptionType", mock.Anything, int64(99)).
			Return(nil, repository.ErrSubscriptionTypeNotFound).Once()

		_, err := svc.AddSubscriptionToUser(context.Background(), u.ID, 99)
		require.ErrorIs(t, err, ErrSubscriptionTypeNotFound)
	})

	t.Run("deleted subscription type", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		deleted := *st
		deleted.IsDeleted = true
		repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
		repo.On("GetSubscriptionType", mock.Anything, int64(3)).Return(&deleted, nil).Once()

		_, err := svc.AddSubscriptionToUser(context.Background(), u.ID, 3)
		require.ErrorIs(t, err, ErrSubscriptionTypeNotFound)
		repo.AssertNotCalled(t, "AddSubscription", mock.Anything, mock.Anything)
	})
}

func TestUpdateUserRoles(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	want := []models.Role{models.RoleAdmin, models.RoleUser}
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
	repo.On("SetRoles", mock.Anything, u.ID, want).Return(nil).Once()

	got, err := svc.UpdateUserRoles(context.Background(), u.ID,
		[]models.Role{models.RoleAdmin, models.RoleUser, models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, want, got.Roles)
	repo.AssertExpectations(t)
}

func TestLockOutUser(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := testUser()
	repo.On("GetUserByID", mock.Anything, u.ID).Return(u, nil).Once()
	repo.On("SetLockout", mock.Anything, u.ID, mock.MatchedBy(func(end *time.Time) bool {
		return end != nil && end.Equal(LockoutForever)
	})).Return(nil).Once()

	require.NoError(t, svc.LockOutUser(context.Background(), u.ID))
	repo.AssertExpectations(t)

	locked := *u
	end := LockoutForever
	locked.LockoutEnd = &end
	assert.True(t, locked.IsLockedOut(testNow.AddDate(100, 0, 0)))
}

func TestCatalogue(t *testing.T) {
	t.Run("add software", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("CreateSoftware", mock.Anything, "Editor").Return(&models.Software{ID: 1, Name: "Editor"}, nil).Once()

		sw, err := svc.AddSoftware(context.Background(), "  Editor ")
		require.NoError(t, err)
		assert.EqualValues(t, 1, sw.ID)
	})

	t.Run("empty software name", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		_, err := svc.AddSoftware(context.Background(), " ")
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("add subscription type", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("CreateSubscriptionType", mock.Anything, mock.MatchedBy(func(st *models.SubscriptionType) bool {
			return st.SoftwareID == 1 && st.Name == "Yearly" && st.LengthInDays == 365
		})).Return(nil).Once()

		st, err := svc.AddSubscriptionType(context.Background(), 1, "Yearly", 365)
		require.NoError(t, err)
		assert.Equal(t, 365, st.LengthInDays)
	})

	t.Run("non-positive length", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		_, err := svc.AddSubscriptionType(context.Background(), 1, "Broken", 0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown software", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("CreateSubscriptionType", mock.Anything, mock.Anything).
			Return(repository.ErrSoftwareNotFound).Once()

		_, err := svc.AddSubscriptionType(context.Background(), 9, "Monthly", 30)
		require.ErrorIs(t, err, ErrSoftwareNotFound)
	})
}

func TestSeedAdmin(t *testing.T) {
	admin := config.AdminUser{
		AdminUsername: "admin",
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin-password",
	}

	t.Run("creates admin", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("GetUserByUsername", mock.Anything, "admin").Return(nil, repository.ErrUserNotFound).Once()
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Username == "admin" && u.EmailConfirmed &&
				u.HasRole(models.RoleAdmin) && u.HasRole(models.RoleUser) &&
				password.CompareHash(u.PasswordHash, "admin-password") == nil
		})).Return(nil).Once()

		require.NoError(t, svc.SeedAdmin(context.Background(), admin))
		repo.AssertExpectations(t)
	})

	t.Run("existing admin untouched", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		u.Roles = []models.Role{models.RoleAdmin}
		repo.On("GetUserByUsername", mock.Anything, "admin").Return(u, nil).Once()

		require.NoError(t, svc.SeedAdmin(context.Background(), admin))
		repo.AssertNotCalled(t, "AddRole", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("existing user gets admin role", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		u := testUser()
		repo.On("GetUserByUsername", mock.Anything, "admin").Return(u, nil).Once()
		repo.On("AddRole", mock.Anything, u.ID, models.RoleAdmin).Return(nil).Once()

		require.NoError(t, svc.SeedAdmin(context.Background(), admin))
		repo.AssertExpectations(t)
	})

	t.Run("disabled", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		require.NoError(t, svc.SeedAdmin(context.Background(), config.AdminUser{}))
		repo.AssertNotCalled(t, "GetUserByUsername", mock.Anything, mock.Anything)
	})

	t.Run("weak password", func(t *testing.T) {
		svc, repo, _, _ := setup(t)
		repo.On("GetUserByUsername", mock.Anything, "admin").Return(nil, repository.ErrUserNotFound).Once()

		weak := admin
		weak.AdminPassword = "123"
		err := svc.SeedAdmin(context.Background(), weak)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

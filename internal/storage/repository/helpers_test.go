package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/software-marketplace/internal/migrations"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

const postgresPort = nat.Port("5432/tcp")

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		_ = postgresContainer.Terminate(ctx)
	})

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, postgresPort)
	require.NoError(t, err, "failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")
	t.Cleanup(func() {
		_ = storage.Close()
	})

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	return storage
}

// testDataFactory создаёт тестовые записи через публичные методы Storage.
type testDataFactory struct {
	storage *Storage
}

func newTestDataFactory(storage *Storage) *testDataFactory {
	return &testDataFactory{storage: storage}
}

func (f *testDataFactory) createUser(t *testing.T, username string, roles ...models.Role) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &models.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          username + "@example.com",
		EmailConfirmed: true,
		PasswordHash:   "hash",
		SecurityStamp:  uuid.NewString(),
		LockoutEnabled: true,
		RegisterDate:   now,
		LastLoginDate:  now,
		Roles:          roles,
	}
	require.NoError(t, f.storage.CreateUser(context.Background(), u))
	return u
}

func (f *testDataFactory) createSubscriptionType(t *testing.T, software string, days int) *models.SubscriptionType {
	t.Helper()
	ctx := context.Background()
	sw, err := f.storage.CreateSoftware(ctx, software)
	require.NoError(t, err)
	st := &models.SubscriptionType{SoftwareID: sw.ID, Name: "monthly", LengthInDays: days}
	require.NoError(t, f.storage.CreateSubscriptionType(ctx, st))
	return st
}

func (f *testDataFactory) addSubscription(t *testing.T, userID string, st *models.SubscriptionType, start time.Time) *models.Subscription {
	t.Helper()
	sub := models.NewSubscription(userID, st, start)
	require.NoError(t, f.storage.AddSubscription(context.Background(), &sub))
	return &sub
}

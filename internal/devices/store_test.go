package devices

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/models"
)

func newTestStore(t *testing.T, bus *events.Bus) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.DeviceToken{}))
	return NewStore(db, bus, zerolog.Nop())
}

func validToken(suffix string) string {
	return "fcm-token-" + suffix
}

func TestValidateTokenBounds(t *testing.T) {
	assert.ErrorIs(t, ValidateToken(""), ErrInvalidToken)
	assert.ErrorIs(t, ValidateToken(strings.Repeat("a", MinTokenLength-1)), ErrInvalidToken)
	assert.NoError(t, ValidateToken(strings.Repeat("a", MinTokenLength)))
	assert.NoError(t, ValidateToken(strings.Repeat("a", MaxTokenLength)))
	assert.ErrorIs(t, ValidateToken(strings.Repeat("a", MaxTokenLength+1)), ErrInvalidToken)
}

func TestRegisterIsIdempotentPerUser(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	t0 := time.Date(2024, time.January, 15, 7, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return t0 }

	first, created, err := store.Register(ctx, "user-a", validToken("1"), "android")
	require.NoError(t, err)
	assert.True(t, created)

	t1 := t0.Add(time.Hour)
	store.now = func() time.Time { return t1 }

	again, created, err := store.Register(ctx, "user-a", validToken("1"), "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.LastSeenAt.Equal(t1))
	assert.Equal(t, "android", again.Platform)

	n, err := store.CountForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTokensAreKeyedByUser(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, _, err := store.Register(ctx, "user-a", validToken("shared"), "")
	require.NoError(t, err)
	_, created, err := store.Register(ctx, "user-b", validToken("shared"), "")
	require.NoError(t, err)
	assert.True(t, created, "same token under another user is a separate registration")

	_, _, err = store.Register(ctx, "user-a", validToken("2"), "")
	require.NoError(t, err)

	a, err := store.ListForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, a, 2)

	b, err := store.ListForUser(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "user-b", b[0].UserID)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, _, err := store.Register(ctx, "user-a", "short", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = store.Register(ctx, "", validToken("1"), "")
	assert.ErrorIs(t, err, ErrMissingUser)

	n, err := store.CountForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemove(t *testing.T) {
	bus := events.NewBus()
	removed := bus.Subscribe(events.EventDeviceRemoved)
	store := newTestStore(t, bus)
	ctx := context.Background()

	_, _, err := store.Register(ctx, "user-a", validToken("1"), "")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Remove(ctx, "user-b", validToken("1")), ErrTokenNotFound)
	require.NoError(t, store.Remove(ctx, "user-a", validToken("1")))
	assert.ErrorIs(t, store.Remove(ctx, "user-a", validToken("1")), ErrTokenNotFound)

	select {
	case payload := <-removed:
		assert.Equal(t, "user-a", payload["user_id"])
	default:
		t.Fatal("expected device.removed event")
	}
}

func TestRegisterPublishesEvent(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventDeviceRegistered)
	store := newTestStore(t, bus)

	device, _, err := store.Register(context.Background(), "user-a", validToken("1"), "ios")
	require.NoError(t, err)

	select {
	case payload := <-sub:
		assert.Equal(t, "user-a", payload["user_id"])
		assert.Equal(t, device.ID, payload["resource_id"])
		assert.Equal(t, "ios", payload["platform"])
		assert.Equal(t, true, payload["created"])
	default:
		t.Fatal("expected device.registered event")
	}
}

func TestConcurrentRegisterKeepsOneRow(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Register(ctx, "user-a", validToken("race"), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := store.CountForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/familyzen/internal/models"
)

func newTestKeyStore(t *testing.T, now *time.Time) *KeyStore {
	t.Helper()
	store := NewKeyStore(newAuthTestDB(t))
	store.now = func() time.Time { return *now }
	return store
}

func TestKeyStoreIssue_Format(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newTestKeyStore(t, &now)

	plaintext, key, err := store.Issue(context.Background(), "u1", "hub", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(plaintext, APIKeyPrefix) {
		t.Fatalf("key %q missing prefix", plaintext)
	}
	if len(plaintext) != len(APIKeyPrefix)+2*APIKeyRandomBytes {
		t.Fatalf("unexpected key length %d", len(plaintext))
	}
	if key.KeyPrefix != plaintext[:displayPrefixLen] {
		t.Fatalf("display prefix %q does not match key", key.KeyPrefix)
	}
	if key.KeyHash != hashAPIKey(plaintext) || strings.Contains(key.KeyHash, plaintext) {
		t.Fatalf("unexpected key hash %q", key.KeyHash)
	}
	if want := now.Add(DefaultAPIKeyDays * 24 * time.Hour); !key.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", key.ExpiresAt, want)
	}

	if _, _, err := store.Issue(context.Background(), "u1", "bad", -1); !errors.Is(err, ErrInvalidExpiry) {
		t.Fatalf("expected ErrInvalidExpiry, got %v", err)
	}
}

func TestKeyStore_Lifecycle(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newTestKeyStore(t, &now)
	ctx := context.Background()

	user, err := RegisterUser(store.db, Registration{Email: "owner@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	plaintext, key, err := store.Issue(ctx, user.ID, "hub", 30)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := store.Validate(ctx, plaintext)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != user.ID || !claims.HasRole(string(models.RoleParent)) {
		t.Fatalf("unexpected claims %+v", claims)
	}

	var stored models.APIKey
	if err := store.db.First(&stored, "id = ?", key.ID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if stored.LastUsedAt == nil || !stored.LastUsedAt.Equal(now) {
		t.Fatalf("expected last_used_at %v, got %v", now, stored.LastUsedAt)
	}

	keys, err := store.List(ctx, user.ID)
	if err != nil || len(keys) != 1 {
		t.Fatalf("List = %v, %v", keys, err)
	}

	if err := store.Revoke(ctx, key.ID, "someone-else"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("revoke by non-owner: got %v", err)
	}
	if err := store.Revoke(ctx, key.ID, user.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, key.ID, user.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("second revoke: got %v", err)
	}
	if _, err := store.Validate(ctx, plaintext); !errors.Is(err, ErrAPIKeyRevoked) {
		t.Fatalf("expected ErrAPIKeyRevoked, got %v", err)
	}
}

func TestKeyStoreValidate_Expired(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newTestKeyStore(t, &now)
	ctx := context.Background()

	user, err := RegisterUser(store.db, Registration{Email: "late@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	plaintext, _, err := store.Issue(ctx, user.ID, "short", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(25 * time.Hour)
	if _, err := store.Validate(ctx, plaintext); !errors.Is(err, ErrAPIKeyExpired) {
		t.Fatalf("expected ErrAPIKeyExpired, got %v", err)
	}
}

func TestKeyStoreValidate_DeletedUser(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newTestKeyStore(t, &now)
	ctx := context.Background()

	plaintext, _, err := store.Issue(ctx, "00000000-0000-0000-0000-000000000001", "orphan", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := store.Validate(ctx, plaintext); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestKeyStoreValidate_RejectsForeignPrefix(t *testing.T) {
	store := NewKeyStore(nil)
	if _, err := store.Validate(context.Background(), "gh_0123456789"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound, got %v", err)
	}
}

func TestAPIKeyExpiry(t *testing.T) {
	day := 24 * time.Hour
	cases := []struct {
		days    int
		want    time.Duration
		wantErr bool
	}{
		{days: 0, want: DefaultAPIKeyDays * day},
		{days: 30, want: 30 * day},
		{days: 1000, want: MaxAPIKeyDays * day},
		{days: -1, wantErr: true},
	}
	for _, tc := range cases {
		got, err := APIKeyExpiry(tc.days)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidExpiry) {
				t.Fatalf("APIKeyExpiry(%d): expected ErrInvalidExpiry, got %v", tc.days, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("APIKeyExpiry(%d) = %v, %v; want %v", tc.days, got, err, tc.want)
		}
	}
}

package audit

import (
	"context"
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

func newTestService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))

	bus := events.NewBus()
	return NewService(db, bus, zerolog.Nop()), bus
}

func TestLogAndQueryFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	family := int64(7)
	other := int64(8)
	user := "user-a"
	base := time.Date(2024, time.January, 15, 7, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Log(ctx, &models.AuditLog{Action: models.AuditActionPlanGenerate, FamilyID: &family, Timestamp: base}))
	require.NoError(t, svc.Log(ctx, &models.AuditLog{Action: models.AuditActionPlanGenerate, FamilyID: &other, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, svc.Log(ctx, &models.AuditLog{Action: models.AuditActionDeviceRegister, UserID: &user, Timestamp: base.Add(2 * time.Minute)}))

	logs, total, err := svc.Query(ctx, QueryFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, logs, 3)
	assert.Equal(t, models.AuditActionDeviceRegister, logs[0].Action, "most recent first")

	logs, total, err = svc.Query(ctx, QueryFilters{FamilyID: &family})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, family, *logs[0].FamilyID)

	action := models.AuditActionDeviceRegister
	logs, _, err = svc.Query(ctx, QueryFilters{Action: &action, UserID: &user})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	start := base.Add(30 * time.Second)
	logs, total, err = svc.Query(ctx, QueryFilters{StartTime: &start, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 1)
}

func TestStartRecordsBusEvents(t *testing.T) {
	svc, bus := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Publishing before the subscriptions exist would be dropped, so retry
	// until the entry shows up.
	require.Eventually(t, func() bool {
		bus.Publish(events.EventPlanGenerated, events.Payload{
			"family_id":      "12",
			"reference_date": "2024-01-15",
			"event_count":    7,
		})
		logs, _, err := svc.Query(context.Background(), QueryFilters{})
		return err == nil && len(logs) > 0
	}, 2*time.Second, 20*time.Millisecond)

	action := models.AuditActionPlanGenerate
	logs, _, err := svc.Query(context.Background(), QueryFilters{Action: &action, Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].FamilyID)
	assert.EqualValues(t, 12, *logs[0].FamilyID)
	assert.Equal(t, "2024-01-15", logs[0].Details["reference_date"])
	_, hasFamily := logs[0].Details["family_id"]
	assert.False(t, hasFamily, "extracted fields are not duplicated in details")
}

func TestFamilyIDFrom(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{in: "42", want: 42, ok: true},
		{in: int64(9), want: 9, ok: true},
		{in: 3, want: 3, ok: true},
		{in: "12abc", ok: false},
		{in: nil, ok: false},
	}
	for _, tc := range cases {
		got, ok := familyIDFrom(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %v", tc.in)
		}
	}
}

func TestEntryFromPayloadSplitsColumns(t *testing.T) {
	svc, _ := newTestService(t)

	entry := svc.entryFromPayload(models.AuditActionDeviceRegister, events.Payload{
		"user_id":       "u-1",
		"user_email":    "parent@example.com",
		"family_id":     int64(4),
		"resource_type": "device",
		"resource_id":   "d-9",
		"ip_address":    "10.0.0.1",
		"platform":      "ios",
	})

	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-1", *entry.UserID)
	assert.Equal(t, "parent@example.com", entry.UserEmail)
	require.NotNil(t, entry.FamilyID)
	assert.EqualValues(t, 4, *entry.FamilyID)
	assert.Equal(t, "device", entry.ResourceType)
	assert.Equal(t, "d-9", entry.ResourceID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, map[string]any{"platform": "ios"}, entry.Details)
}

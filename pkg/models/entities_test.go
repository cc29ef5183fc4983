package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationFields(t *testing.T, err error) []string {
	t.Helper()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}

	return fields
}

func TestNewRoutine_Defaults(t *testing.T) {
	r, err := NewRoutine(Routine{ProjectID: "pj-1", Name: "  login flow "}, fixedNow)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(r.ID, "rt-"))
	assert.Equal(t, "login flow", r.Name)
	assert.Equal(t, DefaultIntervalMinutes, r.IntervalMinutes)
	assert.Equal(t, int64(DefaultTimeoutMs), r.TimeoutMs)
	assert.Equal(t, AllBucketSizes, r.BucketSizes)
	assert.Equal(t, []string{}, r.Locations)
	assert.Equal(t, fixedNow.Truncate(1e6), r.CreatedAt)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)
}

func TestNewRoutine_Invalid(t *testing.T) {
	_, err := NewRoutine(Routine{
		ProjectID:       "pj-1",
		Name:            "x",
		IntervalMinutes: 2000,
		TimeoutMs:       10,
		BucketSizes:     []BucketSize{BucketSizeHour, BucketSizeHour},
		Locations:       []string{" "},
		PackageFileID:   "zz-1",
	}, fixedNow)

	fields := violationFields(t, err)
	assert.Contains(t, fields, "routine.intervalMinutes")
	assert.Contains(t, fields, "routine.timeoutMs")
	assert.Contains(t, fields, "routine.bucketSizes")
	assert.Contains(t, fields, "routine.locations[0]")
	assert.Contains(t, fields, "routine.packageFileId")
}

func TestPlanAllowsRoutine(t *testing.T) {
	p, err := NewPlan(Plan{
		Name:   "Starter",
		Limits: PlanLimits{Routines: 2, MinIntervalMinutes: 10},
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, DefaultCurrency, p.Currency)
	assert.Equal(t, PlanIntervalMonth, p.Interval)

	assert.True(t, p.AllowsRoutine(0, 10))
	assert.True(t, p.AllowsRoutine(1, 60))
	assert.False(t, p.AllowsRoutine(2, 60), "routine limit reached")
	assert.False(t, p.AllowsRoutine(0, 5), "interval below plan minimum")
}

func TestNewPlan_Invalid(t *testing.T) {
	_, err := NewPlan(Plan{Name: "x", PriceCents: -1, Currency: "dollars", Interval: "week"}, fixedNow)

	fields := violationFields(t, err)
	assert.Contains(t, fields, "plan.priceCents")
	assert.Contains(t, fields, "plan.currency")
	assert.Contains(t, fields, "plan.interval")
}

func TestNotificationChannelTargets(t *testing.T) {
	tests := []struct {
		name    string
		typ     ChannelType
		target  string
		wantErr bool
	}{
		{name: "email", typ: ChannelTypeEmail, target: "oncall@example.com"},
		{name: "bad email", typ: ChannelTypeEmail, target: "oncall", wantErr: true},
		{name: "sms", typ: ChannelTypeSMS, target: "+14155552671"},
		{name: "bad sms", typ: ChannelTypeSMS, target: "555-2671", wantErr: true},
		{name: "slack", typ: ChannelTypeSlack, target: "https://hooks.slack.com/services/T000/B000/XXX"},
		{name: "insecure slack", typ: ChannelTypeSlack, target: "http://hooks.slack.com/services/T000", wantErr: true},
		{name: "webhook", typ: ChannelTypeWebhook, target: "http://hooks.internal:8080/uptime"},
		{name: "unknown type", typ: "pager", target: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNotificationChannel(NotificationChannel{
				ProjectID: "pj-1", Name: "ops", Type: tt.typ, Target: tt.target,
			}, fixedNow)

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestNotificationChannelWants(t *testing.T) {
	c, err := NewNotificationChannel(NotificationChannel{
		ProjectID: "pj-1", Name: "ops", Type: ChannelTypeEmail, Target: "a@b.io", Enabled: true,
	}, fixedNow)
	require.NoError(t, err)

	assert.True(t, c.Wants(TimelineStatusDown))
	assert.True(t, c.Wants(TimelineStatusTimeout))
	assert.False(t, c.Wants(TimelineStatusUp))

	c.Enabled = false
	assert.False(t, c.Wants(TimelineStatusDown))
}

func TestPackageFileChecksum(t *testing.T) {
	f, err := NewPackageFile(PackageFile{ProjectID: "pj-1", Name: "suite.js", Content: []byte("abc")}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, int64(3), f.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", f.SHA256)
	assert.Equal(t, DefaultPackageContentType, f.ContentType)

	tampered := *f
	tampered.Content = []byte("abd")

	fields := violationFields(t, tampered.Validate())
	assert.Contains(t, fields, "packageFile.sha256")

	truncated := *f
	truncated.Size = 10

	fields = violationFields(t, truncated.Validate())
	assert.Contains(t, fields, "packageFile.size")
}

func TestNewRun(t *testing.T) {
	r, err := NewRun(Run{ProjectID: "pj-1", RoutineID: "rt-1"}, fixedNow)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(r.ID, "rn-"))
	assert.Equal(t, RunTypeScheduled, r.Type)

	_, err = NewRun(Run{ProjectID: "pj-1", RoutineID: "rt-1", Type: "cron"}, fixedNow)
	assert.Contains(t, violationFields(t, err), "run.type")
}

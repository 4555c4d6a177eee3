package plansource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medminder/internal/models"
)

func TestListPlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/medication-plans", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		// One plan with a time list, one with the legacy single string.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
            {"id":"p1","medicationName":"Metformin","dosageText":"500mg",
             "timesOfDay":["08:00","20:00"],"status":"active"},
            {"id":"p2","medicationName":"Lisinopril","dosageText":"10mg",
             "timesOfDay":"09:00","status":"paused"}
        ]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	plans, err := c.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, models.FlexTimes{"08:00", "20:00"}, plans[0].TimesOfDay)
	assert.Equal(t, models.PlanActive, plans[0].Status)
	assert.Equal(t, models.FlexTimes{"09:00"}, plans[1].TimesOfDay)
	assert.Equal(t, models.PlanPaused, plans[1].Status)
}

func TestRecordDoseEvent(t *testing.T) {
	var got models.DoseEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/medication-plans/p1/dose-events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	ev := models.DoseEvent{
		ID:        "ev-1",
		PlanID:    "p1",
		Action:    models.ActionTaken,
		Timestamp: time.Date(2026, time.March, 14, 8, 5, 0, 0, time.UTC),
	}
	require.NoError(t, c.RecordDoseEvent(context.Background(), ev))
	assert.Equal(t, "ev-1", got.ID)
	assert.Equal(t, models.ActionTaken, got.Action)
}

func TestServerErrorSurfacesAsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.ListPlans(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "maintenance")
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListPlans(ctx)
	assert.Error(t, err)
}

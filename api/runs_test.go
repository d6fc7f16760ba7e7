package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) RecentRuns(ctx context.Context, limit int) ([]*models.MonitorRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*models.MonitorRun)
	return runs, args.Error(1)
}

func newRunsServer(runs *mockRuns) *httptest.Server {
	logger := utils.NewNopLogger()
	return httptest.NewServer(NewRouter(NewImportHandler(&mockImports{}, logger), NewRunsHandler(runs, logger), nil, logger))
}

func TestRecentRunsDefaultLimit(t *testing.T) {
	runs := &mockRuns{}
	runs.On("RecentRuns", mock.Anything, defaultRunsLimit).Return([]*models.MonitorRun{
		{ID: 2, UserID: "u1", NewListings: 3, NotificationsOK: 2},
		{ID: 1, UserID: "u2", Errors: 1},
	}, nil)
	srv := newRunsServer(runs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/monitor/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.MonitorRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].NewListings)
	runs.AssertExpectations(t)
}

func TestRecentRunsLimitIsCapped(t *testing.T) {
	runs := &mockRuns{}
	runs.On("RecentRuns", mock.Anything, maxRunsLimit).Return(nil, nil)
	srv := newRunsServer(runs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/monitor/runs?limit=5000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.MonitorRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got)
	runs.AssertExpectations(t)
}

func TestRecentRunsBadLimit(t *testing.T) {
	runs := &mockRuns{}
	srv := newRunsServer(runs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/monitor/runs?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	runs.AssertNotCalled(t, "RecentRuns", mock.Anything, mock.Anything)
}

func TestRecentRunsStoreError(t *testing.T) {
	runs := &mockRuns{}
	runs.On("RecentRuns", mock.Anything, 5).Return(nil, errors.New("postgres: connection refused"))
	srv := newRunsServer(runs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/monitor/runs?limit=5")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRunsRouteAbsentWithoutRunLog(t *testing.T) {
	srv := newTestServer(&mockImports{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/monitor/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

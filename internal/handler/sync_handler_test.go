package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type syncServiceMock struct {
	summary     *models.SyncSummary
	syncErr     error
	progress    models.SyncProgress
	last        *models.SyncSummary
	lastErr     error
	forceResync bool
	syncCalled  bool
}

func (m *syncServiceMock) SyncAll(ctx context.Context, forceResync bool) (*models.SyncSummary, error) {
	m.syncCalled = true
	m.forceResync = forceResync
	return m.summary, m.syncErr
}

func (m *syncServiceMock) Status() models.SyncProgress {
	return m.progress
}

func (m *syncServiceMock) LastSummary(ctx context.Context) (*models.SyncSummary, error) {
	return m.last, m.lastErr
}

func TestSyncHandlerTrigger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &syncServiceMock{summary: &models.SyncSummary{EventsSynced: 3}}
	handler := NewSyncHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString(`{"force_resync":true}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Trigger(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.syncCalled)
	assert.True(t, mockSvc.forceResync)
}

func TestSyncHandlerTriggerEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &syncServiceMock{summary: &models.SyncSummary{}}
	handler := NewSyncHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	c.Request = req

	handler.Trigger(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mockSvc.forceResync)
}

func TestSyncHandlerTriggerConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSyncHandler(&syncServiceMock{syncErr: appErrors.ErrSyncInProgress})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	c.Request = req

	handler.Trigger(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSyncHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSyncHandler(&syncServiceMock{
		progress: models.SyncProgress{Phase: models.PhaseSyncingEvents, Processed: 10, Total: 20, Percent: 50},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/sync/status", nil)
	c.Request = req

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.SyncProgress `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.PhaseSyncingEvents, envelope.Data.Phase)
	assert.Equal(t, 50, envelope.Data.Percent)
}

func TestSyncHandlerLastNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSyncHandler(&syncServiceMock{lastErr: appErrors.ErrNotFound})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/sync/last", nil)
	c.Request = req

	handler.Last(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

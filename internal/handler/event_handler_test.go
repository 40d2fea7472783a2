package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklight/tracklight-api/internal/models"
	"github.com/tracklight/tracklight-api/internal/service"
)

type eventQuerierMock struct {
	events  []models.Event
	page    *models.CursorPageInfo
	err     error
	lastReq service.EventPageRequest
}

func (m *eventQuerierMock) Page(ctx context.Context, req service.EventPageRequest) ([]models.Event, *models.CursorPageInfo, error) {
	m.lastReq = req
	return m.events, m.page, m.err
}

type eventMutatorMock struct {
	event      *models.Event
	err        error
	eventID    string
	categoryID *string
	called     bool
}

func (m *eventMutatorMock) SetCategory(ctx context.Context, eventID string, categoryID *string) (*models.Event, error) {
	m.called = true
	m.eventID = eventID
	m.categoryID = categoryID
	return m.event, m.err
}

func TestEventHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	querier := &eventQuerierMock{page: &models.CursorPageInfo{Limit: 25}}
	handler := NewEventHandler(querier, &eventMutatorMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events?limit=25&from=2026-03-02&direction=backward&calendar_ids=cal-1,cal-2&skip_all_day=true", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25, querier.lastReq.Limit)
	assert.Equal(t, models.PageBackward, querier.lastReq.Direction)
	assert.Equal(t, []string{"cal-1", "cal-2"}, querier.lastReq.CalendarIDs)
	assert.True(t, querier.lastReq.SkipAllDay)
	require.NotNil(t, querier.lastReq.From)
}

func TestEventHandlerListBadTimeFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventHandler(&eventQuerierMock{}, &eventMutatorMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events?from=yesterday", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandlerSetCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mutator := &eventMutatorMock{event: &models.Event{ID: "e1"}}
	handler := NewEventHandler(&eventQuerierMock{}, mutator)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/events/e1/category", bytes.NewBufferString(`{"category_id":"work"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	handler.SetCategory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mutator.called)
	assert.Equal(t, "e1", mutator.eventID)
	require.NotNil(t, mutator.categoryID)
	assert.Equal(t, "work", *mutator.categoryID)
}

func TestEventHandlerSetCategoryClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mutator := &eventMutatorMock{event: &models.Event{ID: "e1"}}
	handler := NewEventHandler(&eventQuerierMock{}, mutator)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/events/e1/category", bytes.NewBufferString(`{"category_id":null}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	handler.SetCategory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mutator.called)
	assert.Nil(t, mutator.categoryID)
}

func TestEventHandlerSetCategoryInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventHandler(&eventQuerierMock{}, &eventMutatorMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/events/e1/category", bytes.NewBufferString(`{"category_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	handler.SetCategory(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

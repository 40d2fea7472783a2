package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPProvider speaks the Google-Calendar-shaped REST protocol: a
// calendar list endpoint and a paginated per-calendar events endpoint
// honouring pageToken/syncToken cursors.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPProvider constructs the provider.
func NewHTTPProvider(baseURL, token string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type calendarListResponse struct {
	Items []struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		TimeZone string `json:"timeZone"`
	} `json:"items"`
}

type eventTimePayload struct {
	DateTime *time.Time `json:"dateTime,omitempty"`
	Date     string     `json:"date,omitempty"`
}

type eventListResponse struct {
	Items []struct {
		ID          string           `json:"id"`
		Summary     string           `json:"summary"`
		Description *string          `json:"description,omitempty"`
		EventType   *string          `json:"eventType,omitempty"`
		Start       eventTimePayload `json:"start"`
		End         eventTimePayload `json:"end"`
		Status      string           `json:"status"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	NextSyncToken string `json:"nextSyncToken"`
}

// ListCalendars fetches the remote calendar list.
func (p *HTTPProvider) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var decoded calendarListResponse
	if err := p.get(ctx, p.baseURL+"/users/me/calendarList", nil, &decoded); err != nil {
		return nil, err
	}

	calendars := make([]Calendar, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		calendars = append(calendars, Calendar{ID: item.ID, Summary: item.Summary, TimeZone: item.TimeZone})
	}
	return calendars, nil
}

// ListEvents fetches one page of a calendar's events.
func (p *HTTPProvider) ListEvents(ctx context.Context, req ListEventsRequest) (*EventPage, error) {
	params := url.Values{}
	if req.PageToken != "" {
		params.Set("pageToken", req.PageToken)
	}
	if req.SyncToken != "" {
		params.Set("syncToken", req.SyncToken)
	}
	if req.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(req.MaxResults))
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", p.baseURL, url.PathEscape(req.CalendarID))
	var decoded eventListResponse
	if err := p.get(ctx, endpoint, params, &decoded); err != nil {
		return nil, err
	}

	page := &EventPage{
		Items:         make([]Event, 0, len(decoded.Items)),
		NextPageToken: decoded.NextPageToken,
		NextSyncToken: decoded.NextSyncToken,
	}
	for _, item := range decoded.Items {
		page.Items = append(page.Items, Event{
			ID:          item.ID,
			Summary:     item.Summary,
			Description: item.Description,
			EventType:   item.EventType,
			Start:       EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date},
			End:         EventTime{DateTime: item.End.DateTime, Date: item.End.Date},
			Status:      item.Status,
		})
	}
	return page, nil
}

func (p *HTTPProvider) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

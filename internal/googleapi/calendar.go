package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const calendarDefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Calendar creates events through the Google Calendar REST API.
type Calendar struct {
	httpClient *http.Client
	baseURL    string
}

// NewCalendar wraps an authorized HTTP client.
func NewCalendar(httpClient *http.Client) *Calendar {
	return &Calendar{httpClient: httpClient, baseURL: calendarDefaultBaseURL}
}

// Event mirrors the Calendar API event resource, limited to the fields the
// pipeline reads and writes.
type Event struct {
	ID             string          `json:"id,omitempty"`
	Summary        string          `json:"summary"`
	Location       string          `json:"location,omitempty"`
	Description    string          `json:"description,omitempty"`
	Start          EventTime       `json:"start"`
	End            EventTime       `json:"end"`
	Attendees      []Attendee      `json:"attendees,omitempty"`
	Reminders      *Reminders      `json:"reminders,omitempty"`
	ConferenceData *ConferenceData `json:"conferenceData,omitempty"`
	HangoutLink    string          `json:"hangoutLink,omitempty"`
	HTMLLink       string          `json:"htmlLink,omitempty"`
	Status         string          `json:"status,omitempty"`
}

// EventTime holds a zoned event boundary.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is one invited participant.
type Attendee struct {
	Email string `json:"email"`
}

// Reminders overrides the calendar's default notification settings.
type Reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides,omitempty"`
}

// ReminderOverride is a single notification rule.
type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// ConferenceData requests a Meet link for the event.
type ConferenceData struct {
	CreateRequest *ConferenceCreateRequest `json:"createRequest,omitempty"`
}

// ConferenceCreateRequest identifies the conference to attach.
type ConferenceCreateRequest struct {
	RequestID             string                `json:"requestId"`
	ConferenceSolutionKey ConferenceSolutionKey `json:"conferenceSolutionKey"`
}

// ConferenceSolutionKey selects the conferencing product.
type ConferenceSolutionKey struct {
	Type string `json:"type"`
}

// Insert creates the event on the primary calendar, requesting a Meet link
// and notifying attendees.
func (c *Calendar) Insert(ctx context.Context, event Event) (*Event, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("calendar: marshal event: %w", err)
	}

	q := url.Values{}
	q.Set("conferenceDataVersion", "1")
	q.Set("sendUpdates", "all")
	endpoint := fmt.Sprintf("%s/calendars/primary/events?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("calendar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar: insert failed with status %d: %s", resp.StatusCode, string(body))
	}

	var created Event
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("calendar: parse response: %w", err)
	}
	return &created, nil
}

// IntroCallWindow returns the start and end of a mentor intro call: one week
// from now, same weekday, 10:00 to 11:00 in the given timezone.
func IntroCallWindow(now time.Time, loc *time.Location) (start, end time.Time) {
	day := now.In(loc).AddDate(0, 0, 7)
	start = time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, loc)
	return start, start.Add(time.Hour)
}

// IntroCallRequestID builds the deterministic conference request id, keyed by
// employee and call date so retries reuse the same Meet room.
func IntroCallRequestID(employeeID int64, callDate time.Time) string {
	return fmt.Sprintf("mentor-%d-%s", employeeID, callDate.Format("2006-01-02"))
}

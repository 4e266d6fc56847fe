package googleapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestEncodeHTMLMessage(t *testing.T) {
	raw := EncodeHTMLMessage("me", "hire@example.com", "Welcome!", "<p>Hi</p>")
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)

	text := string(decoded)
	assert.Contains(t, text, "From: me\r\n")
	assert.Contains(t, text, "To: hire@example.com\r\n")
	assert.Contains(t, text, "Subject: Welcome!\r\n")
	assert.Contains(t, text, `Content-Type: text/html; charset="UTF-8"`)
	assert.True(t, strings.HasSuffix(text, "<p>Hi</p>"))
}

func TestGmailSendHTML(t *testing.T) {
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/send", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotRaw = body["raw"]
		json.NewEncoder(w).Encode(SentMessage{ID: "msg-1", ThreadID: "thr-1"})
	}))
	defer srv.Close()

	g := NewGmail(srv.Client())
	g.baseURL = srv.URL

	sent, err := g.SendHTML(context.Background(), "hire@example.com", "Welcome!", "<p>Hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", sent.ID)

	decoded, err := base64.RawURLEncoding.DecodeString(gotRaw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "To: hire@example.com")
}

func TestGmailSendErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "insufficient scope"}}`))
	}))
	defer srv.Close()

	g := NewGmail(srv.Client())
	g.baseURL = srv.URL

	_, err := g.SendHTML(context.Background(), "hire@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "insufficient scope")
}

func TestCalendarInsertRequestsMeetLink(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		created := got
		created.ID = "evt-1"
		created.HangoutLink = "https://meet.google.com/abc-defg-hij"
		json.NewEncoder(w).Encode(created)
	}))
	defer srv.Close()

	c := NewCalendar(srv.Client())
	c.baseURL = srv.URL

	event := Event{
		Summary: "Intro chat: Hire x Mentor (Data Platform)",
		Start:   EventTime{DateTime: "2026-09-07T10:00:00", TimeZone: "Asia/Kolkata"},
		End:     EventTime{DateTime: "2026-09-07T11:00:00", TimeZone: "Asia/Kolkata"},
		Attendees: []Attendee{
			{Email: "hire@example.com"},
			{Email: "mentor@example.com"},
		},
		Reminders: &Reminders{
			UseDefault: false,
			Overrides: []ReminderOverride{
				{Method: "popup", Minutes: 10},
				{Method: "popup", Minutes: 30},
			},
		},
		ConferenceData: &ConferenceData{
			CreateRequest: &ConferenceCreateRequest{
				RequestID:             "mentor-1-2026-09-07",
				ConferenceSolutionKey: ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	created, err := c.Insert(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", created.ID)
	assert.NotEmpty(t, created.HangoutLink)

	require.NotNil(t, got.ConferenceData)
	assert.Equal(t, "hangoutsMeet", got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
	require.Len(t, got.Attendees, 2)
}

func TestIntroCallWindow(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// A Friday afternoon.
	now := time.Date(2026, 8, 28, 16, 30, 0, 0, loc)
	start, end := IntroCallWindow(now, loc)

	assert.Equal(t, time.Friday, start.Weekday())
	assert.Equal(t, time.Date(2026, 9, 4, 10, 0, 0, 0, loc), start)
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestIntroCallRequestID(t *testing.T) {
	date := time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "mentor-42-2026-09-04", IntroCallRequestID(42, date))
}

func TestAuthenticatorTokenRoundTrip(t *testing.T) {
	a := NewAuthenticator("", filepath.Join(t.TempDir(), "token.json"))
	assert.False(t, a.HasToken())

	tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "def", TokenType: "Bearer"}
	require.NoError(t, a.writeToken(tok))
	assert.True(t, a.HasToken())

	got, err := a.readToken()
	require.NoError(t, err)
	assert.Equal(t, "abc", got.AccessToken)
	assert.Equal(t, "def", got.RefreshToken)
}

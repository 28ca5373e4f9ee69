package caldav

import (
	"net/http"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImporterDefaults(t *testing.T) {
	im := NewImporter("https://caldav.example.com", "user", "pass", nil)
	require.NotNil(t, im)
	assert.Equal(t, "https://caldav.example.com", im.baseURL)
	assert.Empty(t, im.calendarPath)

	same := im.WithCalendarPath("/calendars/household/")
	assert.Same(t, im, same)
	assert.Equal(t, "/calendars/household/", im.calendarPath)
}

func TestToCalendarItem(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "external-1")
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)

	obj := &caldav.CalendarObject{Path: "/calendars/household/external-1.ics", Data: cal}

	item, ok := toCalendarItem(obj)
	require.True(t, ok)
	assert.True(t, item.DateTime.Equal(start))
	assert.Equal(t, 30, item.DurationMinutes)
	assert.True(t, item.Evaluate(start.Add(10*time.Minute)))
}

func TestToCalendarItemRejectsMissingData(t *testing.T) {
	_, ok := toCalendarItem(nil)
	assert.False(t, ok)

	_, ok = toCalendarItem(&caldav.CalendarObject{Data: nil})
	assert.False(t, ok)
}

func TestToCalendarItemRejectsNonPositiveDuration(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "zero-length")
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, start)

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)

	_, ok := toCalendarItem(&caldav.CalendarObject{Data: cal})
	assert.False(t, ok)
}

func TestBasicAuthTransportSetsAuthHeader(t *testing.T) {
	transport := &basicAuthTransport{username: "u", password: "p", base: &stubRoundTripper{}}

	req, err := http.NewRequest(http.MethodGet, "https://caldav.example.com", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Contains(t, req.Header.Get("Authorization"), "Basic ")
}

type stubRoundTripper struct{}

func (s *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK}, nil
}

// Package caldav imports external CalDAV events (e.g. a household
// "do not disturb" calendar) as one-shot time-engine CalendarItems.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/nymea-go/thingd/internal/timeengine/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// Importer pulls VEVENTs from a CalDAV calendar and turns them into
// one-shot CalendarItems a TimeDescriptor can evaluate against.
type Importer struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	logger       *slog.Logger
}

// NewImporter creates a CalDAV calendar importer.
func NewImporter(baseURL, username, password string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{baseURL: baseURL, username: username, password: password, logger: logger}
}

// WithCalendarPath pins the importer to a specific calendar path
// instead of discovering the account's first calendar.
func (im *Importer) WithCalendarPath(path string) *Importer {
	im.calendarPath = path
	return im
}

// Import fetches every VEVENT overlapping [start, end) and converts it
// into a one-shot CalendarItem. Events whose start or end cannot be
// read, or whose end is not after their start, are left out of the
// result rather than producing a zero-duration item; no separate check
// is made for all-day events.
func (im *Importer) Import(ctx context.Context, start, end time.Time) ([]domain.CalendarItem, error) {
	client, err := im.client()
	if err != nil {
		return nil, fmt.Errorf("caldav import: %w", err)
	}

	calPath, err := im.findCalendarPath(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("caldav import: find calendar: %w", err)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{Name: "VEVENT", Props: []string{"SUMMARY", "DTSTART", "DTEND", "UID"}},
			},
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT", Start: start, End: end}},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("caldav import: query calendar: %w", err)
	}

	items := make([]domain.CalendarItem, 0, len(objects))
	for _, obj := range objects {
		item, ok := toCalendarItem(&obj)
		if !ok {
			im.logger.Warn("skipping calendar object without usable start/end", "path", obj.Path)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (im *Importer) client() (*caldav.Client, error) {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &basicAuthTransport{username: im.username, password: im.password, base: http.DefaultTransport},
	}
	return caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, im.username, im.password), im.baseURL)
}

func (im *Importer) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if im.calendarPath != "" {
		return im.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", err
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", err
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", err
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}
	return cals[0].Path, nil
}

func toCalendarItem(obj *caldav.CalendarObject) (domain.CalendarItem, bool) {
	if obj == nil || obj.Data == nil {
		return domain.CalendarItem{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		event := &ical.Event{Component: child}
		start, startErr := event.DateTimeStart(time.UTC)
		end, endErr := event.DateTimeEnd(time.UTC)
		if startErr != nil || endErr != nil || !end.After(start) {
			return domain.CalendarItem{}, false
		}

		return domain.CalendarItem{
			ID:              ids.NewCalendarItemID(),
			DateTime:        start,
			DurationMinutes: int(end.Sub(start) / time.Minute),
		}, true
	}

	return domain.CalendarItem{}, false
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

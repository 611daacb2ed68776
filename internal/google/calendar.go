package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

const DefaultDeadlineDays = 30

type Calendar struct {
	f   *Factory
	svc *calendar.Service
}

func (f *Factory) Calendar(ctx context.Context, tok *oauth2.Token) (*Calendar, error) {
	svc, err := calendar.NewService(ctx, f.clientOptions(tok)...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}
	return &Calendar{f: f, svc: svc}, nil
}

func (c *Calendar) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	return call(ctx, c.f, ServiceCalendar, func(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
		list, err := c.svc.CalendarList.List().Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

// EventQuery bounds an event listing. Zero times are left open.
type EventQuery struct {
	TimeMin time.Time
	TimeMax time.Time
	Text    string
}

func (c *Calendar) ListEvents(ctx context.Context, calendarID string, q EventQuery) ([]*calendar.Event, error) {
	return call(ctx, c.f, ServiceCalendar, func(ctx context.Context) ([]*calendar.Event, error) {
		req := c.svc.Events.List(calendarID).SingleEvents(true).OrderBy("startTime")
		if !q.TimeMin.IsZero() {
			req = req.TimeMin(q.TimeMin.Format(time.RFC3339))
		}
		if !q.TimeMax.IsZero() {
			req = req.TimeMax(q.TimeMax.Format(time.RFC3339))
		}
		if q.Text != "" {
			req = req.Q(q.Text)
		}
		events, err := req.Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return events.Items, nil
	})
}

func (c *Calendar) CreateEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return call(ctx, c.f, ServiceCalendar, func(ctx context.Context) (*calendar.Event, error) {
		return c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	})
}

type Milestone struct {
	Title       string
	Description string
	Date        time.Time
}

// MilestoneEvent is an all-day event tagged with the project name.
func MilestoneEvent(projectName string, m Milestone) *calendar.Event {
	day := m.Date.Format("2006-01-02")
	next := m.Date.AddDate(0, 0, 1).Format("2006-01-02")
	return &calendar.Event{
		Summary:     fmt.Sprintf("[%s] Milestone: %s", projectName, m.Title),
		Description: m.Description,
		Start:       &calendar.EventDateTime{Date: day},
		End:         &calendar.EventDateTime{Date: next},
	}
}

func (c *Calendar) CreateMilestone(ctx context.Context, projectName string, m Milestone) (*calendar.Event, error) {
	return c.CreateEvent(ctx, "primary", MilestoneEvent(projectName, m))
}

type Meeting struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

func MeetingEvent(projectName string, m Meeting) *calendar.Event {
	event := &calendar.Event{
		Summary:     fmt.Sprintf("[%s] %s", projectName, m.Title),
		Description: m.Description,
		Start:       &calendar.EventDateTime{DateTime: m.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: m.End.Format(time.RFC3339)},
	}
	for _, email := range m.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}
	return event
}

func (c *Calendar) CreateMeeting(ctx context.Context, projectName string, m Meeting) (*calendar.Event, error) {
	return c.CreateEvent(ctx, "primary", MeetingEvent(projectName, m))
}

// ProjectDeadlines lists upcoming primary-calendar events that mention the
// project, up to daysAhead days out.
func (c *Calendar) ProjectDeadlines(ctx context.Context, projectName string, daysAhead int) ([]*calendar.Event, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultDeadlineDays
	}
	now := time.Now()
	return c.ListEvents(ctx, "primary", EventQuery{
		TimeMin: now,
		TimeMax: now.AddDate(0, 0, daysAhead),
		Text:    "[" + projectName + "]",
	})
}

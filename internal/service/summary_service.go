package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
)

// SummaryService renders the widget text: a compact, always-current view of
// what is coming up, grouped by day.
type SummaryService struct {
	schedules *ScheduleService
}

func NewSummaryService(schedules *ScheduleService) *SummaryService {
	return &SummaryService{schedules: schedules}
}

// WidgetSummary builds the HTML summary shown by the widget message: pending
// schedules grouped by day, followed by upcoming birthdays.
func (s *SummaryService) WidgetSummary(ctx context.Context, now time.Time) (string, error) {
	upcoming, err := s.schedules.Upcoming(ctx, now)
	if err != nil {
		return "", err
	}
	birthdays, err := s.schedules.BirthdaysUpcoming(ctx, now)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Schedule</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	if len(upcoming) == 0 {
		builder.WriteString("Nothing planned. Enjoy the quiet. ✨\n")
	} else {
		var lastDay time.Time
		for _, sc := range upcoming {
			day := startOfDay(sc.Timestamp.Local())
			if !day.Equal(lastDay) {
				builder.WriteString(fmt.Sprintf("<b>%s</b>\n", dayLabel(day, now)))
				lastDay = day
			}
			builder.WriteString(fmt.Sprintf("%s %s · %s\n",
				scheduleIcon(sc.IsFromRoutine, sc.Priority),
				sc.Timestamp.Local().Format("15:04"),
				html.EscapeString(strings.TrimSpace(sc.Title))))
		}
	}

	if len(birthdays) > 0 {
		builder.WriteString("\n🎂 <b>Birthdays</b>\n")
		for _, b := range birthdays {
			builder.WriteString(fmt.Sprintf("• %s — %s\n",
				html.EscapeString(strings.TrimSpace(b.Anchor.Title)),
				b.Time.Format("02 Jan")))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// dayLabel renders a group header: Today, Tomorrow, or the date.
func dayLabel(day, now time.Time) string {
	today := startOfDay(now.Local())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return day.Format("Mon, 02 Jan")
	}
}

func scheduleIcon(fromRoutine bool, priority int) string {
	if fromRoutine {
		return "🔄"
	}
	switch priority {
	case 3:
		return "🔴"
	case 2:
		return "🟡"
	default:
		return "🟢"
	}
}

package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// The extractors normalize free-text fragments into typed task fields. They
// never fail: absence of a recognizable value is reported as ok=false and
// the caller decides whether a default applies.

var statusSynonyms = map[string]task.Status{
	"todo":        task.StatusTodo,
	"to-do":       task.StatusTodo,
	"pending":     task.StatusTodo,
	"open":        task.StatusTodo,
	"in_progress": task.StatusInProgress,
	"in-progress": task.StatusInProgress,
	"started":     task.StatusInProgress,
	"ongoing":     task.StatusInProgress,
	"done":        task.StatusDone,
	"complete":    task.StatusDone,
	"completed":   task.StatusDone,
	"finished":    task.StatusDone,
	"closed":      task.StatusDone,
}

// statusPhrases are multi-word synonyms, checked in this fixed order so a
// fragment containing several of them always resolves the same way
var statusPhrases = []struct {
	phrase string
	status task.Status
}{
	{"not started", task.StatusTodo},
	{"in progress", task.StatusInProgress},
	{"working on", task.StatusInProgress},
	{"to do", task.StatusTodo},
}

var prioritySynonyms = map[string]task.Priority{
	"high":      task.PriorityHigh,
	"urgent":    task.PriorityHigh,
	"important": task.PriorityHigh,
	"critical":  task.PriorityHigh,
	"asap":      task.PriorityHigh,
	"medium":    task.PriorityMedium,
	"normal":    task.PriorityMedium,
	"moderate":  task.PriorityMedium,
	"low":       task.PriorityLow,
	"minor":     task.PriorityLow,
	"trivial":   task.PriorityLow,
	"whenever":  task.PriorityLow,
}

// ParseStatus maps a text fragment onto a task status. Longer synonyms are
// checked first so "in progress" wins over a bare "progress" token.
func ParseStatus(text string) (task.Status, bool) {
	normalized := normalizeFragment(text)
	if normalized == "" {
		return "", false
	}

	for _, p := range statusPhrases {
		if strings.Contains(normalized, p.phrase) {
			return p.status, true
		}
	}
	for _, word := range strings.Fields(normalized) {
		if status, ok := statusSynonyms[word]; ok {
			return status, true
		}
	}
	return "", false
}

// ParsePriority maps a text fragment onto a task priority
func ParsePriority(text string) (task.Priority, bool) {
	normalized := normalizeFragment(text)
	if normalized == "" {
		return "", false
	}

	for _, word := range strings.Fields(normalized) {
		if priority, ok := prioritySynonyms[word]; ok {
			return priority, true
		}
	}
	return "", false
}

var absoluteDateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"02/01/2006",
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDueDate resolves absolute dates and relative phrases ("today",
// "tomorrow", "in 3 days", "next friday") against now. Unparseable input
// yields ok=false, never a guessed date.
func ParseDueDate(text string, now time.Time) (time.Time, bool) {
	normalized := normalizeFragment(text)
	if normalized == "" {
		return time.Time{}, false
	}

	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}

	switch normalized {
	case "today", "by today", "end of day", "eod":
		return endOfDay(now), true
	case "tomorrow", "by tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), true
	case "next week":
		return endOfDay(now.AddDate(0, 0, 7)), true
	case "next month":
		return endOfDay(now.AddDate(0, 1, 0)), true
	}

	// "in N days" / "in N weeks"
	fields := strings.Fields(normalized)
	if len(fields) == 3 && fields[0] == "in" {
		if n, err := strconv.Atoi(fields[1]); err == nil && n >= 0 {
			switch strings.TrimSuffix(fields[2], "s") {
			case "day":
				return endOfDay(now.AddDate(0, 0, n)), true
			case "week":
				return endOfDay(now.AddDate(0, 0, 7*n)), true
			case "month":
				return endOfDay(now.AddDate(0, n, 0)), true
			}
		}
	}

	// "friday" / "next friday" / "on friday"
	dayWord := normalized
	for _, prefix := range []string{"next ", "on ", "this ", "by "} {
		dayWord = strings.TrimPrefix(dayWord, prefix)
	}
	if weekday, ok := weekdays[dayWord]; ok {
		days := (int(weekday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return endOfDay(now.AddDate(0, 0, days)), true
	}

	for _, layout := range absoluteDateLayouts {
		if parsed, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return parsed, true
		}
		if parsed, err := time.ParseInLocation(layout, titleCaseDate(normalized), now.Location()); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

func normalizeFragment(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// titleCaseDate uppercases the first letter of each word so lowercased month
// names still match the absolute layouts.
func titleCaseDate(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 0 && f[0] >= 'a' && f[0] <= 'z' {
			fields[i] = fmt.Sprintf("%c%s", f[0]-'a'+'A', f[1:])
		}
	}
	return strings.Join(fields, " ")
}

package taskstore

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskcam/pkg/structurer"
)

// Time-of-day patterns found in meeting task names, most specific first:
// "6:30 pm", "14:30", "9 am".
var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(am|pm|AM|PM)`),
	regexp.MustCompile(`(\d{1,2}):(\d{2})`),
	regexp.MustCompile(`(\d{1,2})\s*(am|pm|AM|PM)`),
}

// parseTimeFromName extracts a time of day from a task name and anchors it
// to the current date. Meeting entries are written like
// "6:30 pm - Counseling session".
func parseTimeFromName(name string, now time.Time) (time.Time, bool) {
	if name == "" {
		return time.Time{}, false
	}

	for _, pattern := range timePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		var hour, minute int
		var period string

		switch len(m) {
		case 4: // hour:minute am/pm
			hour, _ = strconv.Atoi(m[1])
			minute, _ = strconv.Atoi(m[2])
			period = strings.ToLower(m[3])
		case 3:
			if strings.Contains(m[0], ":") { // 24h hour:minute
				hour, _ = strconv.Atoi(m[1])
				minute, _ = strconv.Atoi(m[2])
			} else { // bare hour with am/pm
				hour, _ = strconv.Atoi(m[1])
				period = strings.ToLower(m[2])
			}
		}

		if period == "pm" && hour != 12 {
			hour += 12
		} else if period == "am" && hour == 12 {
			hour = 0
		}

		if hour > 23 || minute > 59 {
			continue
		}

		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), true
	}

	return time.Time{}, false
}

// resolveTimestamps applies the status-transition rules to one task:
//   - plannedAt is preserved for known tasks, set to now for new ones
//   - startedAt fires on the transition into IN_PROGRESS
//   - completedAt fires on the transition into COMPLETED
//   - MEETING tasks take startedAt from the model or from a time of day
//     written in the task name
//
// prev is the task's previous persisted state, nil for a new task.
func resolveTimestamps(task structurer.Task, prev *structurer.Task, now time.Time) (planned, started, completed structurer.Timestamp) {
	if prev != nil && prev.PlannedAt.Valid {
		planned = prev.PlannedAt
	} else {
		planned = structurer.NewTimestamp(now)
	}

	if prev != nil {
		started = prev.StartedAt
		completed = prev.CompletedAt
	} else {
		started = task.StartedAt
		completed = task.CompletedAt
	}

	if task.Status == structurer.StatusMeeting {
		if task.StartedAt.Valid {
			started = task.StartedAt
		} else if t, ok := parseTimeFromName(task.Name, now); ok {
			started = structurer.NewTimestamp(t)
		} else {
			started = structurer.Timestamp{}
		}
		return planned, started, completed
	}

	if prev == nil {
		switch task.Status {
		case structurer.StatusInProgress:
			started = structurer.NewTimestamp(now)
		case structurer.StatusCompleted:
			started = structurer.NewTimestamp(now)
			completed = structurer.NewTimestamp(now)
		}
		return planned, started, completed
	}

	if !started.Valid && prev.Status != structurer.StatusInProgress && task.Status == structurer.StatusInProgress {
		started = structurer.NewTimestamp(now)
	}
	if !completed.Valid && prev.Status != structurer.StatusCompleted && task.Status == structurer.StatusCompleted {
		completed = structurer.NewTimestamp(now)
	}

	return planned, started, completed
}

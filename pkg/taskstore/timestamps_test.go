package taskstore

import (
	"testing"
	"time"

	"taskcam/pkg/structurer"
)

var testNow = time.Date(2025, 1, 15, 14, 0, 0, 0, time.FixedZone("ICT", 7*3600))

func TestParseTimeFromName(t *testing.T) {
	cases := []struct {
		name  string
		found bool
		hour  int
		min   int
	}{
		{"6:30 pm - Counseling session", true, 18, 30},
		{"9:00 am - Team meeting", true, 9, 0},
		{"14:30 standup", true, 14, 30},
		{"12:15 PM lunch sync", true, 12, 15},
		{"12:05 am inventory job", true, 0, 5},
		{"3 pm - Dentist", true, 15, 0},
		{"Meeting with client", false, 0, 0},
		{"", false, 0, 0},
	}

	for _, tc := range cases {
		got, ok := parseTimeFromName(tc.name, testNow)
		if ok != tc.found {
			t.Errorf("%q: found=%v, want %v", tc.name, ok, tc.found)
			continue
		}
		if !ok {
			continue
		}
		if got.Hour() != tc.hour || got.Minute() != tc.min {
			t.Errorf("%q: got %02d:%02d, want %02d:%02d", tc.name, got.Hour(), got.Minute(), tc.hour, tc.min)
		}
		if got.Year() != testNow.Year() || got.Day() != testNow.Day() {
			t.Errorf("%q: parsed time not anchored to today: %v", tc.name, got)
		}
	}
}

func TestResolveTimestamps_NewTask(t *testing.T) {
	planned, started, completed := resolveTimestamps(
		structurer.Task{Name: "New", Status: structurer.StatusNotStarted}, nil, testNow)

	if !planned.Valid || !planned.Equal(testNow) {
		t.Errorf("new task plannedAt should be now, got %+v", planned)
	}
	if started.Valid || completed.Valid {
		t.Error("NOT_STARTED task should have no started/completed timestamps")
	}
}

func TestResolveTimestamps_NewCompletedTask(t *testing.T) {
	_, started, completed := resolveTimestamps(
		structurer.Task{Name: "Done already", Status: structurer.StatusCompleted}, nil, testNow)

	if !started.Valid || !completed.Valid {
		t.Error("new COMPLETED task gets both started and completed set to now")
	}
}

func TestResolveTimestamps_TransitionToInProgress(t *testing.T) {
	prev := &structurer.Task{Name: "Write report", Status: structurer.StatusNotStarted}
	_, started, completed := resolveTimestamps(
		structurer.Task{Name: "Write report", Status: structurer.StatusInProgress}, prev, testNow)

	if !started.Valid || !started.Equal(testNow) {
		t.Errorf("transition to IN_PROGRESS should stamp startedAt, got %+v", started)
	}
	if completed.Valid {
		t.Error("completedAt must stay unset")
	}
}

func TestResolveTimestamps_TransitionToCompleted(t *testing.T) {
	startedEarlier := structurer.NewTimestamp(testNow.Add(-2 * time.Hour))
	prev := &structurer.Task{
		Name:      "Write report",
		Status:    structurer.StatusInProgress,
		StartedAt: startedEarlier,
	}
	_, started, completed := resolveTimestamps(
		structurer.Task{Name: "Write report", Status: structurer.StatusCompleted}, prev, testNow)

	if !started.Equal(startedEarlier.Time) {
		t.Error("existing startedAt must be preserved across completion")
	}
	if !completed.Valid || !completed.Equal(testNow) {
		t.Errorf("completion transition should stamp completedAt, got %+v", completed)
	}
}

func TestResolveTimestamps_NoRestamping(t *testing.T) {
	old := structurer.NewTimestamp(testNow.Add(-24 * time.Hour))
	prev := &structurer.Task{
		Name:        "Stable task",
		Status:      structurer.StatusCompleted,
		PlannedAt:   old,
		StartedAt:   old,
		CompletedAt: old,
	}
	planned, started, completed := resolveTimestamps(
		structurer.Task{Name: "Stable task", Status: structurer.StatusCompleted}, prev, testNow)

	for label, ts := range map[string]structurer.Timestamp{
		"plannedAt": planned, "startedAt": started, "completedAt": completed,
	} {
		if !ts.Equal(old.Time) {
			t.Errorf("%s restamped on a re-scan without a transition: %+v", label, ts)
		}
	}
}

func TestResolveTimestamps_MeetingFromName(t *testing.T) {
	_, started, _ := resolveTimestamps(
		structurer.Task{Name: "6:30 pm - Counseling session", Status: structurer.StatusMeeting}, nil, testNow)

	if !started.Valid || started.Hour() != 18 || started.Minute() != 30 {
		t.Errorf("meeting time should come from the task name, got %+v", started)
	}
}

func TestResolveTimestamps_MeetingModelProvided(t *testing.T) {
	fromModel := structurer.NewTimestamp(testNow.Add(3 * time.Hour))
	_, started, _ := resolveTimestamps(structurer.Task{
		Name:      "5:00 pm - Sync",
		Status:    structurer.StatusMeeting,
		StartedAt: fromModel,
	}, nil, testNow)

	if !started.Equal(fromModel.Time) {
		t.Error("model-provided startedAt must win over the name-parsed time")
	}
}

func TestResolveTimestamps_MeetingWithoutTime(t *testing.T) {
	_, started, _ := resolveTimestamps(
		structurer.Task{Name: "Team meeting", Status: structurer.StatusMeeting}, nil, testNow)

	if started.Valid {
		t.Error("meeting without a parseable time has no startedAt")
	}
}

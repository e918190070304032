package taskstore

import (
	"net/url"
	"time"

	firestore "google.golang.org/api/firestore/v1"

	"taskcam/pkg/structurer"
)

// taskKey builds the deterministic key for a task or subtask. Subtask keys
// are namespaced by the parent name so same-named items stay distinct.
func taskKey(name, parent string) string {
	if parent != "" {
		return parent + "::" + name
	}
	return name
}

// keyToDocID encodes a task key for use as a Firestore document ID
// (handles spaces and special characters).
func keyToDocID(key string) string {
	return url.QueryEscape(key)
}

func strValue(s string) firestore.Value {
	return firestore.Value{StringValue: s, ForceSendFields: []string{"StringValue"}}
}

func intValue(n int64) firestore.Value {
	return firestore.Value{IntegerValue: n, ForceSendFields: []string{"IntegerValue"}}
}

func nullValue() firestore.Value {
	return firestore.Value{NullValue: "NULL_VALUE", ForceSendFields: []string{"NullValue"}}
}

func timeValue(t time.Time) firestore.Value {
	return firestore.Value{TimestampValue: t.UTC().Format(time.RFC3339Nano)}
}

func tsValue(ts structurer.Timestamp) firestore.Value {
	if !ts.Valid {
		return nullValue()
	}
	return timeValue(ts.Time)
}

func strOrNull(s string) firestore.Value {
	if s == "" {
		return nullValue()
	}
	return strValue(s)
}

// taskFields encodes a resolved task (timestamps already filled in) as
// Firestore document fields, subtasks nested one level per array entry.
func taskFields(task structurer.Task) map[string]firestore.Value {
	fields := map[string]firestore.Value{
		"name":        strValue(task.Name),
		"status":      strValue(string(task.Status)),
		"plannedAt":   tsValue(task.PlannedAt),
		"startedAt":   tsValue(task.StartedAt),
		"completedAt": tsValue(task.CompletedAt),
		"order":       intValue(int64(task.Order)),
		"projectRef":  strOrNull(task.ProjectRef),
	}

	subtasks := make([]*firestore.Value, 0, len(task.Subtasks))
	for _, st := range task.Subtasks {
		subtasks = append(subtasks, &firestore.Value{
			MapValue: &firestore.MapValue{Fields: taskFields(st)},
		})
	}
	fields["subtasks"] = firestore.Value{
		ArrayValue: &firestore.ArrayValue{Values: subtasks},
	}

	return fields
}

// taskFieldPaths are the document fields written on every task upsert.
// The update mask keeps unspecified server-side fields intact (merge).
var taskFieldPaths = []string{
	"name", "status", "plannedAt", "startedAt", "completedAt",
	"order", "projectRef", "subtasks",
}

// decodeTask converts Firestore document fields back into a task.
func decodeTask(fields map[string]firestore.Value) structurer.Task {
	task := structurer.Task{
		Name:        fields["name"].StringValue,
		Status:      structurer.Status(fields["status"].StringValue),
		Order:       int(fields["order"].IntegerValue),
		ProjectRef:  fields["projectRef"].StringValue,
		PlannedAt:   decodeTime(fields["plannedAt"]),
		StartedAt:   decodeTime(fields["startedAt"]),
		CompletedAt: decodeTime(fields["completedAt"]),
	}

	if arr := fields["subtasks"].ArrayValue; arr != nil {
		for _, v := range arr.Values {
			if v != nil && v.MapValue != nil {
				task.Subtasks = append(task.Subtasks, decodeTask(v.MapValue.Fields))
			}
		}
	}

	return task
}

func decodeTime(v firestore.Value) structurer.Timestamp {
	if v.TimestampValue == "" {
		return structurer.Timestamp{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.TimestampValue)
	if err != nil {
		return structurer.Timestamp{}
	}
	return structurer.NewTimestamp(t)
}

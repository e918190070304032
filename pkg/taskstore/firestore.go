// Package taskstore persists structured scans to Firestore.
//
// Layout: Dailies/{YYYY-MM-DD} holds the day's metadata, its tasks
// subcollection holds one document per top-level task (subtasks nested
// inside), and pastJSONs keeps a snapshot per scan. Projects is a flat
// catalog read for the structuring prompt.
package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	firestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/option"

	"taskcam/internal/log"
	"taskcam/pkg/structurer"
)

const (
	datastoreScope = "https://www.googleapis.com/auth/datastore"

	dailiesCollection   = "Dailies"
	tasksCollection     = "tasks"
	snapshotsCollection = "pastJSONs"
	projectsCollection  = "Projects"
)

// Client writes structured scans to Firestore via the REST API.
type Client struct {
	svc      *firestore.Service
	basePath string // projects/{id}/databases/(default)/documents
	tz       *time.Location
	logger   *slog.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewClient creates a Firestore client from a service-account credentials
// file. The Google Cloud project ID is read from the file itself.
// A missing or unreadable file is a startup-fatal error for the caller.
func NewClient(ctx context.Context, credentialsPath string, tz *time.Location) (*Client, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, datastoreScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	projectID, err := projectIDFromCredentials(data, creds.ProjectID)
	if err != nil {
		return nil, err
	}

	svc, err := firestore.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("create firestore service: %w", err)
	}

	if tz == nil {
		tz = time.UTC
	}

	return &Client{
		svc:      svc,
		basePath: fmt.Sprintf("projects/%s/databases/(default)/documents", projectID),
		tz:       tz,
		logger:   log.With("component", "taskstore"),
		now:      func() time.Time { return time.Now().In(tz) },
	}, nil
}

// projectIDFromCredentials prefers the resolved credential project and
// falls back to the raw file's project_id field.
func projectIDFromCredentials(data []byte, resolved string) (string, error) {
	if resolved != "" {
		return resolved, nil
	}
	var raw struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &raw); err == nil && raw.ProjectID != "" {
		return raw.ProjectID, nil
	}
	return "", fmt.Errorf("credentials file has no project_id")
}

// DailyID returns the document ID for today's daily in the store timezone.
func (c *Client) DailyID() string {
	return c.now().Format("2006-01-02")
}

// SaveDaily upserts the daily document, merges every task with its
// previous state (filling transition timestamps), and records a snapshot.
// Returns the daily document ID the scan was filed under.
func (c *Client) SaveDaily(ctx context.Context, scanID string, page *structurer.Page) (string, error) {
	if page == nil || len(page.Tasks) == 0 {
		return "", fmt.Errorf("nothing to save")
	}

	now := c.now()
	dailyID := now.Format("2006-01-02")
	dailyPath := fmt.Sprintf("%s/%s/%s", c.basePath, dailiesCollection, dailyID)

	dailyFields := map[string]firestore.Value{
		"date":          timeValue(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.tz)),
		"createdAt":     timeValue(now),
		"updatedAt":     timeValue(now),
		"cardScannedAt": timeValue(now),
	}
	if err := c.patch(ctx, dailyPath, dailyFields, []string{"date", "createdAt", "updatedAt", "cardScannedAt"}); err != nil {
		return "", fmt.Errorf("upsert daily %s: %w", dailyID, err)
	}

	prevMap, err := c.allTasks(ctx, dailyID)
	if err != nil {
		return "", fmt.Errorf("load existing tasks: %w", err)
	}

	resolved := make([]structurer.Task, 0, len(page.Tasks))
	for i, task := range page.Tasks {
		r := c.resolveTask(task, prevMap, "", i, now)
		resolved = append(resolved, r)

		taskPath := fmt.Sprintf("%s/%s/%s", dailyPath, tasksCollection, keyToDocID(taskKey(r.Name, "")))
		if err := c.patch(ctx, taskPath, taskFields(r), taskFieldPaths); err != nil {
			return "", fmt.Errorf("upsert task %q: %w", r.Name, err)
		}
	}

	if err := c.saveSnapshot(ctx, dailyPath, scanID, &structurer.Page{Tasks: resolved}, now); err != nil {
		// A scan is still usable without its snapshot
		c.logger.Warn("snapshot save failed", "daily", dailyID, "error", err)
	}

	c.logger.Info("scan persisted", "daily", dailyID, "tasks", len(resolved), "scan_id", scanID)
	return dailyID, nil
}

// resolveTask merges one task with its previous persisted state and
// recurses into subtasks. Subtasks inherit the parent's projectRef.
func (c *Client) resolveTask(task structurer.Task, prevMap map[string]structurer.Task, parent string, index int, now time.Time) structurer.Task {
	key := taskKey(task.Name, parent)
	var prev *structurer.Task
	if p, ok := prevMap[key]; ok {
		prev = &p
	}

	out := task
	out.PlannedAt, out.StartedAt, out.CompletedAt = resolveTimestamps(task, prev, now)
	if out.Order == 0 {
		out.Order = index + 1
	}
	if out.ProjectRef == "" && prev != nil {
		out.ProjectRef = prev.ProjectRef
	}

	out.Subtasks = nil
	for i, st := range task.Subtasks {
		if st.ProjectRef == "" {
			st.ProjectRef = out.ProjectRef
		}
		out.Subtasks = append(out.Subtasks, c.resolveTask(st, prevMap, task.Name, i, now))
	}

	return out
}

// allTasks loads the day's persisted tasks as a flat map keyed by task key,
// flattening subtasks one level deep for transition lookups.
func (c *Client) allTasks(ctx context.Context, dailyID string) (map[string]structurer.Task, error) {
	parent := fmt.Sprintf("%s/%s/%s", c.basePath, dailiesCollection, dailyID)
	taskMap := make(map[string]structurer.Task)

	call := c.svc.Projects.Databases.Documents.ListDocuments(parent, tasksCollection).PageSize(300)
	err := call.Pages(ctx, func(resp *firestore.ListDocumentsResponse) error {
		for _, doc := range resp.Documents {
			task := decodeTask(doc.Fields)
			taskMap[taskKey(task.Name, "")] = task
			for _, st := range task.Subtasks {
				taskMap[taskKey(st.Name, task.Name)] = st
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return taskMap, nil
}

// saveSnapshot records the full resolved scan under pastJSONs.
func (c *Client) saveSnapshot(ctx context.Context, dailyPath, scanID string, page *structurer.Page, now time.Time) error {
	pageJSON, err := json.Marshal(page)
	if err != nil {
		return err
	}

	doc := &firestore.Document{Fields: map[string]firestore.Value{
		"savedAt":  timeValue(now),
		"scanId":   strValue(scanID),
		"pageJSON": strValue(string(pageJSON)),
	}}

	_, err = c.svc.Projects.Databases.Documents.
		CreateDocument(dailyPath, snapshotsCollection, doc).
		DocumentId(now.Format(time.RFC3339)).
		Context(ctx).Do()
	return err
}

// ListProjects returns the project catalog for the structuring prompt.
func (c *Client) ListProjects(ctx context.Context) ([]structurer.Project, error) {
	var projects []structurer.Project

	call := c.svc.Projects.Databases.Documents.ListDocuments(c.basePath, projectsCollection).PageSize(100)
	err := call.Pages(ctx, func(resp *firestore.ListDocumentsResponse) error {
		for _, doc := range resp.Documents {
			projects = append(projects, structurer.Project{
				ID:          docID(doc.Name),
				Name:        doc.Fields["name"].StringValue,
				Description: doc.Fields["description"].StringValue,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	return projects, nil
}

// patch upserts a document, merging only the masked fields.
func (c *Client) patch(ctx context.Context, name string, fields map[string]firestore.Value, mask []string) error {
	doc := &firestore.Document{Fields: fields}
	_, err := c.svc.Projects.Databases.Documents.
		Patch(name, doc).
		UpdateMaskFieldPaths(mask...).
		Context(ctx).Do()
	return err
}

// docID returns the last path segment of a document resource name.
func docID(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

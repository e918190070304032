package structurer

import (
	"fmt"
	"strings"
)

// basePrompt instructs the model to OCR the handwritten page and emit the
// strict JSON contract ParsePage expects. Wording tuned against real pages;
// be careful editing the null-timestamp rule, the model regresses easily.
const basePrompt = `You are receiving an image of a handwritten TODO list where object detection has labeled items with status symbols.

Please analyze this image and:
1. Perform OCR on the handwritten text to extract each TODO item.
2. Some tasks can go onto multiple lines. Make sure to correctly extract the full text of each task, combining lines as needed so that multi-line tasks are captured as a single task.
3. Map the detected symbols to the appropriate status values:
   - Items with "IN_PROGRESS" labels, orange color, should map to "IN_PROGRESS"
   - Items with "NOT_STARTED" labels, red color, should map to "NOT_STARTED"
   - Items with "MEETING" labels, blue color, should map to "MEETING"
   - Items with "COMPLETED" labels, green color or appearing checked off, should map to "COMPLETED"
4. If a TODO item is indented further to the right compared to the previous item, treat it as a subtask of the nearest less-indented task above. Subtasks can themselves have their own subtasks. Include a "subtasks" array for any task that has subtasks; omit the key otherwise.
5. Do not be too eager when deciding if something is a subtask. If the status symbol is not clearly indented compared to the previous task, assume it is a parent-level task.
6. For each task and subtask, best guess which project it belongs to based on its content, choosing from the project list at the end of this prompt. Populate the "projectRef" field accordingly. Subtasks share the parent's projectRef.
7. If no suitable project can be identified, set "projectRef" to null.
8. Return ONLY a JSON object in this exact format (no additional text):

{
  "tasks": [
    {
      "name": "extracted task text here",
      "status": "NOT_STARTED|IN_PROGRESS|MEETING|COMPLETED",
      "plannedAt": null,
      "startedAt": null,
      "completedAt": null,
      "order": 1,
      "projectRef": "project_id_here_or_null",
      "subtasks": []
    }
  ]
}

CRITICAL: For ALL date/time fields (plannedAt, startedAt, completedAt), use ONLY the JSON value null (not the string "null", not "N/A"). The system expects null for unset timestamps.

Extract each visible TODO item, preserving the original text as much as possible, and assign the status from the detected symbols. Represent hierarchy with "subtasks", but only when the indentation is clear and obvious.

## Available Projects:
`

// buildPrompt appends the project catalog to the base prompt.
func buildPrompt(projects []Project) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if len(projects) == 0 {
		b.WriteString("No projects found in the database.\n")
		return b.String()
	}

	for _, p := range projects {
		desc := p.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.Name, p.ID, desc)
	}
	return b.String()
}

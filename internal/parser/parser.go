// Package parser decodes employee task dashboard files.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/renshaw/taskwire/internal/models"
)

// dashboardDoc is the current on-disk shape: an object wrapping the task list.
type dashboardDoc struct {
	Tasks []models.Task `json:"tasks"`
}

// ParseDashboard decodes a task dashboard file. Both shapes that have been
// written over time are accepted: an object {"tasks": [...]} and a bare
// top-level array of tasks.
func ParseDashboard(data []byte) ([]models.Task, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("parser: empty dashboard file")
	}

	if trimmed[0] == '[' {
		var tasks []models.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("parser: decode task array: %w", err)
		}
		return tasks, nil
	}

	var doc dashboardDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parser: decode dashboard: %w", err)
	}
	return doc.Tasks, nil
}

// FilterAssigned returns the subset of tasks whose status is "assigned".
// No diffing against a previous snapshot happens here: a re-written file
// re-triggers notification for every still-assigned task (at-least-once).
func FilterAssigned(tasks []models.Task) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Status == models.StatusAssigned {
			out = append(out, t)
		}
	}
	return out
}

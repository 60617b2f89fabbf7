// Package model defines the core domain types for Sekkei.
//
// All types correspond directly to database tables, pipeline state, and
// API payloads. Types use strong typing (UUIDs, time.Time, enums) and
// avoid interface{} wherever possible.
package model

import "fmt"

// TaskID identifies one stage of the generation pipeline.
type TaskID string

const (
	TaskRequirements   TaskID = "requirements"
	TaskSchema         TaskID = "schema"
	TaskImplementation TaskID = "implementation"
	TaskValidation     TaskID = "validation"
	TaskVisualization  TaskID = "visualization"
)

// TaskStatus represents the lifecycle state of a pipeline task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskErrored   TaskStatus = "error"
)

// Subtask is a cosmetic progress breakdown within a Task. Subtasks are not
// scheduled independently; they complete as the parent task's progress
// crosses their threshold.
type Subtask struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
}

// Task is one stage of the generation pipeline.
type Task struct {
	ID               TaskID     `json:"id"`
	Title            string     `json:"title"`
	Agent            string     `json:"agent"`
	Status           TaskStatus `json:"status"`
	Progress         float64    `json:"progress"`
	EstimatedSeconds int        `json:"estimated_seconds"`
	Subtasks         []Subtask  `json:"subtasks"`
}

// TaskSummary is the frozen per-task record stored in a transcript.
type TaskSummary struct {
	ID       TaskID     `json:"id"`
	Title    string     `json:"title"`
	Agent    string     `json:"agent"`
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
}

// TaskDefinition declares one pipeline stage before a session starts.
type TaskDefinition struct {
	ID               TaskID
	Title            string
	Agent            string
	EstimatedSeconds int
	Subtasks         []string
}

// DefaultTaskDefinitions returns the fixed pipeline
// requirements → schema → implementation → validation, with the optional
// visualization stage appended when withVisualization is true.
func DefaultTaskDefinitions(withVisualization bool) []TaskDefinition {
	defs := []TaskDefinition{
		{
			ID:               TaskRequirements,
			Title:            "Requirements Analysis",
			Agent:            "Analyst",
			EstimatedSeconds: 8,
			Subtasks:         []string{"Parse prompt", "Identify entities", "Draft requirements"},
		},
		{
			ID:               TaskSchema,
			Title:            "Schema Design",
			Agent:            "Architect",
			EstimatedSeconds: 12,
			Subtasks:         []string{"Model tables", "Define relations", "Add constraints"},
		},
		{
			ID:               TaskImplementation,
			Title:            "Implementation",
			Agent:            "Engineer",
			EstimatedSeconds: 10,
			Subtasks:         []string{"Generate DDL", "Seed sample data", "Stub API endpoints"},
		},
		{
			ID:               TaskValidation,
			Title:            "Validation",
			Agent:            "Reviewer",
			EstimatedSeconds: 6,
			Subtasks:         []string{"Check normalization", "Verify indexes", "Quality report"},
		},
	}
	if withVisualization {
		defs = append(defs, TaskDefinition{
			ID:               TaskVisualization,
			Title:            "Visualization",
			Agent:            "Illustrator",
			EstimatedSeconds: 5,
			Subtasks:         []string{"Layout entities", "Render diagram"},
		})
	}
	return defs
}

// ValidateTaskDefinitions checks that a task list is usable: non-empty,
// unique ids, non-empty titles.
func ValidateTaskDefinitions(defs []TaskDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("model: task list is empty")
	}
	seen := make(map[TaskID]bool, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("model: task with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("model: duplicate task id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Title == "" {
			return fmt.Errorf("model: task %q has empty title", d.ID)
		}
	}
	return nil
}

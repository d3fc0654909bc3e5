// Package models - Task kinds and label sets shared by the decoders.
package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Task is the kind of prediction a model produces. A predictor is bound to one task
// for its whole lifetime.
type Task string

const (
	// TaskClassify ranks whole-image class scores.
	TaskClassify Task = "classify"
	// TaskDetect produces axis-aligned boxes.
	TaskDetect Task = "detect"
	// TaskSegment produces boxes plus per-instance masks.
	TaskSegment Task = "segment"
	// TaskPose produces boxes plus per-instance keypoints.
	TaskPose Task = "pose"
	// TaskOBB produces oriented bounding boxes.
	TaskOBB Task = "obb"
)

// Tasks is a list of all supported tasks.
var Tasks = []Task{TaskClassify, TaskDetect, TaskSegment, TaskPose, TaskOBB}

// ParseTask converts a task name into a Task.
//
// Arguments:
//   - s: The task name, case-insensitive.
//
// Returns:
//   - Task: The matching task.
//   - error: An error if the name is not a supported task.
func ParseTask(s string) (Task, error) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tasks {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Errorf("unsupported task: %q", s)
}

// HasBoxes reports whether results of this task carry axis-aligned boxes.
func (t Task) HasBoxes() bool {
	return t == TaskDetect || t == TaskSegment || t == TaskPose
}

// Package plan parses implementation plans and specification documents and
// measures how well the plan covers the specs.
//
// Every function re-reads its inputs. Nothing is cached between calls, so
// the agent may rewrite the plan between iterations.
package plan

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/shanewwarren/fresher-sub000/internal/utils"
)

// Status is the checkbox state of a plan task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
)

// Task is a single checkbox item from an implementation plan.
type Task struct {
	Description  string   `json:"description" yaml:"description"`
	Status       Status   `json:"status" yaml:"status"`
	SpecRefs     []string `json:"spec_refs" yaml:"spec_refs"`
	Line         int      `json:"line_number" yaml:"line_number"`
	Priority     *int     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Complexity   string   `json:"complexity,omitempty" yaml:"complexity,omitempty"`
}

// Counts tallies tasks by status.
type Counts struct {
	Total      int `json:"total" yaml:"total"`
	Pending    int `json:"pending" yaml:"pending"`
	Completed  int `json:"completed" yaml:"completed"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
}

// Add returns the element-wise sum of two counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:      c.Total + o.Total,
		Pending:    c.Pending + o.Pending,
		Completed:  c.Completed + o.Completed,
		InProgress: c.InProgress + o.InProgress,
	}
}

// IsComplete reports whether nothing is pending and at least one task is done.
// A plan with zero completed tasks is never complete.
func IsComplete(c Counts) bool {
	return c.Pending == 0 && c.Completed >= 1
}

var (
	priorityRe   = regexp.MustCompile(`^##\s+Priority\s+(\d+)`)
	taskRe       = regexp.MustCompile(`^(\s*)-\s*\[([ xX~])\]\s+(.+)$`)
	refsRe       = regexp.MustCompile(`\(refs?:\s*([^)]+)\)`)
	dependencyRe = regexp.MustCompile(`Dependencies:\s*(.+)`)
	complexityRe = regexp.MustCompile(`Complexity:\s*(low|medium|high)`)
)

// ParsePlan extracts tasks from plan content. It is pure: the same content
// always yields the same tasks.
func ParsePlan(content string) []Task {
	var tasks []Task
	var priority *int

	for i, line := range splitLines(content) {
		if m := priorityRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				priority = &n
			} else {
				priority = nil
			}
			continue
		}

		if m := taskRe.FindStringSubmatch(line); m != nil {
			tasks = append(tasks, newTask(m[2], m[3], i+1, priority))
		}

		// Annotation lines attach to the most recent task, including the
		// task line itself.
		if len(tasks) == 0 {
			continue
		}
		last := &tasks[len(tasks)-1]
		if m := dependencyRe.FindStringSubmatch(line); m != nil {
			deps := strings.TrimSpace(m[1])
			if !strings.EqualFold(deps, "none") {
				last.Dependencies = utils.SplitAndTrim(deps, ",")
			}
		}
		if m := complexityRe.FindStringSubmatch(line); m != nil {
			last.Complexity = m[1]
		}
	}
	return tasks
}

func newTask(mark, text string, line int, priority *int) Task {
	task := Task{
		Status:       statusFromMark(mark),
		SpecRefs:     []string{},
		Line:         line,
		Dependencies: []string{},
	}
	if priority != nil {
		p := *priority
		task.Priority = &p
	}
	if m := refsRe.FindStringSubmatch(text); m != nil {
		task.SpecRefs = utils.SplitAndTrim(m[1], ",")
	}
	task.Description = strings.TrimSpace(refsRe.ReplaceAllString(text, ""))
	return task
}

func statusFromMark(mark string) Status {
	switch mark {
	case "x", "X":
		return StatusCompleted
	case "~":
		return StatusInProgress
	default:
		return StatusPending
	}
}

// ParsePlanFile reads and parses the plan at path.
func ParsePlanFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return ParsePlan(string(data)), nil
}

// Count tallies tasks by status.
func Count(tasks []Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusCompleted:
			c.Completed++
		case StatusInProgress:
			c.InProgress++
		}
	}
	return c
}

// splitLines splits on \n and drops a trailing \r so CRLF plans parse the
// same as LF plans.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

package plan

import (
	"sort"
	"strings"
)

// CoverageEntry reports how many plan tasks reference one spec.
type CoverageEntry struct {
	SpecName         string  `json:"spec_name" yaml:"spec_name"`
	RequirementCount int     `json:"requirement_count" yaml:"requirement_count"`
	TaskCount        int     `json:"task_count" yaml:"task_count"`
	CoveragePercent  float64 `json:"coverage_percent" yaml:"coverage_percent"`
}

// Report is the full verification result for a plan against a spec dir.
type Report struct {
	TotalTasks      int             `json:"total_tasks" yaml:"total_tasks"`
	PendingTasks    int             `json:"pending_tasks" yaml:"pending_tasks"`
	CompletedTasks  int             `json:"completed_tasks" yaml:"completed_tasks"`
	InProgressTasks int             `json:"in_progress_tasks" yaml:"in_progress_tasks"`
	TasksWithRefs   int             `json:"tasks_with_refs" yaml:"tasks_with_refs"`
	OrphanTasks     int             `json:"orphan_tasks" yaml:"orphan_tasks"`
	Coverage        []CoverageEntry `json:"coverage" yaml:"coverage"`
	Tasks           []Task          `json:"tasks" yaml:"tasks"`
}

// SpecName maps a task reference such as "specs/foo.md" or "foo.md" to the
// spec name "foo".
func SpecName(ref string) string {
	name := strings.TrimPrefix(strings.TrimSpace(ref), "specs/")
	return strings.TrimSuffix(name, ".md")
}

// AnalyzeCoverage groups the requirements in specDir by spec and counts the
// tasks referencing each. Coverage is capped at 100 and is 0 for a spec with
// no requirements. Entries are sorted by spec name.
func AnalyzeCoverage(specDir string, tasks []Task) ([]CoverageEntry, error) {
	reqs, err := ExtractRequirements(specDir)
	if err != nil {
		return nil, err
	}
	return coverage(reqs, tasks), nil
}

func coverage(reqs []Requirement, tasks []Task) []CoverageEntry {
	reqCounts := make(map[string]int)
	for _, r := range reqs {
		reqCounts[r.SpecName]++
	}

	taskCounts := make(map[string]int)
	for _, t := range tasks {
		for _, ref := range t.SpecRefs {
			taskCounts[SpecName(ref)]++
		}
	}

	entries := make([]CoverageEntry, 0, len(reqCounts))
	for name, n := range reqCounts {
		entries = append(entries, CoverageEntry{
			SpecName:         name,
			RequirementCount: n,
			TaskCount:        taskCounts[name],
			CoveragePercent:  coveragePercent(taskCounts[name], n),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SpecName < entries[j].SpecName
	})
	return entries
}

func coveragePercent(tasks, reqs int) float64 {
	if reqs <= 0 {
		return 0
	}
	pct := float64(tasks) / float64(reqs) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// GenerateReport parses the plan and measures its coverage of specDir.
func GenerateReport(planPath, specDir string) (*Report, error) {
	tasks, err := ParsePlanFile(planPath)
	if err != nil {
		return nil, err
	}
	entries, err := AnalyzeCoverage(specDir, tasks)
	if err != nil {
		return nil, err
	}

	counts := Count(tasks)
	withRefs := 0
	for _, t := range tasks {
		if len(t.SpecRefs) > 0 {
			withRefs++
		}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return &Report{
		TotalTasks:      counts.Total,
		PendingTasks:    counts.Pending,
		CompletedTasks:  counts.Completed,
		InProgressTasks: counts.InProgress,
		TasksWithRefs:   withRefs,
		OrphanTasks:     counts.Total - withRefs,
		Coverage:        entries,
		Tasks:           tasks,
	}, nil
}

package plan

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	implIndexFile  = "README.md"
	implArchiveDir = ".archive"
)

var (
	openBoxRe        = regexp.MustCompile(`^\s*-\s*\[\s\]`)
	numberedHeaderRe = regexp.MustCompile(`^###\s+\d+\.\d+\s+.+$`)
)

// HasHierarchicalPlan reports whether implDir holds a README.md index.
func HasHierarchicalPlan(implDir string) bool {
	if implDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(implDir, implIndexFile))
	return err == nil && !info.IsDir()
}

// HasPendingTasks reports whether any work remains. When implDir holds a
// README.md index the per-feature files are scanned instead of planPath.
// Missing or unreadable files count as having nothing pending.
func HasPendingTasks(planPath, implDir string) bool {
	if HasHierarchicalPlan(implDir) {
		for _, path := range featureFiles(implDir) {
			if hasOpenBox(path) {
				return true
			}
		}
		return hasOpenBox(filepath.Join(implDir, implIndexFile))
	}

	data, err := os.ReadFile(planPath)
	if err != nil {
		return false
	}
	for _, line := range splitLines(string(data)) {
		if openBoxRe.MatchString(line) {
			return true
		}
		if numberedHeaderRe.MatchString(line) && !headerDone(line) {
			return true
		}
	}
	return false
}

// Progress counts plan items. Checkbox tasks are counted with ParsePlan;
// numbered section headers such as "### 1.2 Name" count as pending until
// they carry a check mark. With a hierarchical plan the feature files and
// README.md are summed and planPath is ignored.
func Progress(planPath, implDir string) (Counts, error) {
	if HasHierarchicalPlan(implDir) {
		var total Counts
		paths := append(featureFiles(implDir), filepath.Join(implDir, implIndexFile))
		for _, path := range paths {
			c, err := fileProgress(path)
			if err != nil {
				return Counts{}, err
			}
			total = total.Add(c)
		}
		return total, nil
	}

	c, err := fileProgress(planPath)
	if os.IsNotExist(err) {
		return Counts{}, nil
	}
	return c, err
}

func fileProgress(path string) (Counts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Counts{}, err
	}
	content := string(data)
	c := Count(ParsePlan(content))
	for _, line := range splitLines(content) {
		if !numberedHeaderRe.MatchString(line) {
			continue
		}
		c.Total++
		if headerDone(line) {
			c.Completed++
		} else {
			c.Pending++
		}
	}
	return c, nil
}

func headerDone(line string) bool {
	return strings.Contains(line, "✅") || strings.Contains(line, "✓")
}

func hasOpenBox(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range splitLines(string(data)) {
		if openBoxRe.MatchString(line) {
			return true
		}
	}
	return false
}

// featureFiles lists the markdown feature files of a hierarchical plan in
// name order, skipping the index and the archive.
func featureFiles(implDir string) []string {
	entries, err := os.ReadDir(implDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == implIndexFile || name == implArchiveDir {
			continue
		}
		if filepath.Ext(name) != ".md" {
			continue
		}
		files = append(files, filepath.Join(implDir, name))
	}
	sort.Strings(files)
	return files
}

// FeatureProgress is the task tally of one feature file of a hierarchical
// plan.
type FeatureProgress struct {
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Counts `yaml:",inline"`
}

// Percent returns the completed share of the feature's tasks.
func (f FeatureProgress) Percent() float64 {
	if f.Total == 0 {
		return 0
	}
	return float64(f.Completed) / float64(f.Total) * 100
}

// Features returns the progress of every feature file in implDir and the
// tally of the README.md index itself, which holds cross-cutting tasks.
func Features(implDir string) ([]FeatureProgress, Counts, error) {
	if !HasHierarchicalPlan(implDir) {
		return nil, Counts{}, os.ErrNotExist
	}

	var features []FeatureProgress
	for _, path := range featureFiles(implDir) {
		c, err := fileProgress(path)
		if err != nil {
			return nil, Counts{}, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".md")
		features = append(features, FeatureProgress{Name: name, File: path, Counts: c})
	}

	index, err := fileProgress(filepath.Join(implDir, implIndexFile))
	if err != nil {
		return nil, Counts{}, err
	}
	return features, index, nil
}

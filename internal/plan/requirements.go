package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// RequirementKind classifies how a requirement was found in a spec.
type RequirementKind string

const (
	KindSection RequirementKind = "section"
	KindTask    RequirementKind = "task"
	KindRFC2119 RequirementKind = "rfc2119"
)

// Requirement is a single statement extracted from a spec document.
type Requirement struct {
	SpecName string          `json:"spec_name" yaml:"spec_name"`
	Kind     RequirementKind `json:"req_type" yaml:"req_type"`
	Text     string          `json:"text" yaml:"text"`
	Line     int             `json:"line_number" yaml:"line_number"`
}

// sectionLevel is the heading depth that marks a requirement section.
const sectionLevel = 3

var (
	specBoxRe = regexp.MustCompile(`^(\s*)-\s*\[([ xX])\]\s+(.+)$`)
	rfc2119Re = regexp.MustCompile(`\b(MUST|MUST NOT|REQUIRED|SHALL|SHALL NOT|SHOULD|SHOULD NOT|RECOMMENDED|MAY|OPTIONAL)\b`)
)

// ExtractRequirements reads every *.md file in specDir, in name order, and
// returns the requirements found. A missing directory yields no requirements.
func ExtractRequirements(specDir string) ([]Requirement, error) {
	entries, err := os.ReadDir(specDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spec dir: %w", err)
	}

	md := goldmark.New()
	var reqs []Requirement
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(specDir, entry.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		reqs = append(reqs, specRequirements(md, name, source)...)
	}
	return reqs, nil
}

// specRequirements extracts the requirements of one document, ordered by
// line with sections before checkboxes before keyword lines.
func specRequirements(md goldmark.Markdown, name string, source []byte) []Requirement {
	reqs := sections(md, name, source)
	for i, line := range splitLines(string(source)) {
		if m := specBoxRe.FindStringSubmatch(line); m != nil {
			reqs = append(reqs, Requirement{SpecName: name, Kind: KindTask, Text: m[3], Line: i + 1})
		}
		if rfc2119Re.MatchString(line) {
			reqs = append(reqs, Requirement{SpecName: name, Kind: KindRFC2119, Text: line, Line: i + 1})
		}
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].Line != reqs[j].Line {
			return reqs[i].Line < reqs[j].Line
		}
		return kindRank(reqs[i].Kind) < kindRank(reqs[j].Kind)
	})
	return reqs
}

// sections walks the markdown AST for top-level level-3 headings. Headings
// inside fenced code, lists or quotes are not sections.
func sections(md goldmark.Markdown, name string, source []byte) []Requirement {
	doc := md.Parser().Parse(text.NewReader(source))
	var reqs []Requirement
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if heading.Level != sectionLevel || heading.Parent() == nil || heading.Parent().Kind() != ast.KindDocument {
			return ast.WalkSkipChildren, nil
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		title := strings.TrimSpace(buf.String())
		if title == "" {
			return ast.WalkSkipChildren, nil
		}
		reqs = append(reqs, Requirement{
			SpecName: name,
			Kind:     KindSection,
			Text:     title,
			Line:     bytes.Count(source[:lines.At(0).Start], []byte("\n")) + 1,
		})
		return ast.WalkSkipChildren, nil
	})
	return reqs
}

func kindRank(k RequirementKind) int {
	switch k {
	case KindSection:
		return 0
	case KindTask:
		return 1
	default:
		return 2
	}
}

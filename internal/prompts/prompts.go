// Package prompts renders the per-mode agent prompt.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"

	"github.com/shanewwarren/fresher-sub000/internal/fresherdir"
)

//go:embed templates/*.md
var bundled embed.FS

// Commands are the project's validation commands.
type Commands struct {
	Test  string
	Build string
	Lint  string
}

// Data holds prompt template variables. Paths are shown to the agent as
// written in the configuration, relative to the project root.
type Data struct {
	Mode     string
	SpecDir  string
	SrcDir   string
	PlanFile string
	ImplDir  string
	Commands Commands
}

// Prompt is a resolved prompt and where it came from.
type Prompt struct {
	Text string

	// Source is the override file path, or "" for the bundled template.
	Source string
}

// Store resolves prompts for a project.
type Store struct {
	workDir string
}

// NewStore creates a prompt store for the project at workDir.
func NewStore(workDir string) *Store {
	return &Store{workDir: workDir}
}

// Load returns the prompt for data.Mode. A .fresher/PROMPT.<mode>.md file is
// used verbatim when present; otherwise the bundled template is rendered.
func (s *Store) Load(data Data) (Prompt, error) {
	if data.Mode == "" {
		return Prompt{}, errors.New("prompt mode is empty")
	}

	override := fresherdir.PromptPath(s.workDir, data.Mode)
	raw, err := os.ReadFile(override)
	switch {
	case err == nil:
		return Prompt{Text: string(raw), Source: override}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Prompt{}, fmt.Errorf("read prompt override: %w", err)
	}

	text, err := Render(data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text}, nil
}

// SystemPromptFile returns the path of .fresher/AGENTS.md if it exists.
func (s *Store) SystemPromptFile() string {
	path := fresherdir.AgentsPath(s.workDir)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

// Render renders the bundled template for data.Mode with strict
// missing-key behavior.
func Render(data Data) (string, error) {
	name := "templates/" + data.Mode + ".md"
	raw, err := bundled.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("unknown prompt mode %q", data.Mode)
	}
	if err := validateRequired(data); err != nil {
		return "", err
	}
	tmpl, err := template.New(data.Mode).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", data.Mode, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", data.Mode, err)
	}
	return buf.String(), nil
}

// Template returns the raw bundled template for mode.
func Template(mode string) (string, error) {
	raw, err := bundled.ReadFile("templates/" + mode + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt mode %q", mode)
	}
	return string(raw), nil
}

func validateRequired(data Data) error {
	required := []struct {
		name  string
		value string
	}{
		{"SpecDir", data.SpecDir},
		{"PlanFile", data.PlanFile},
		{"ImplDir", data.ImplDir},
	}
	if data.Mode == "planning" {
		required = append(required, struct {
			name  string
			value string
		}{"SrcDir", data.SrcDir})
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("prompt %q requires %s", data.Mode, r.name)
		}
	}
	return nil
}

// Package templates provides the embedded SOP documents used when no
// generation service can produce one: offline stubs, fallbacks and
// emergency documents.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

//go:embed *.md
var templateFiles embed.FS

// Kind says when a template is used.
type Kind string

const (
	// KindStub is the offline document produced by the synthesizer.
	KindStub Kind = "stub"
	// KindFallback is returned by callers when the pipeline reports failure.
	KindFallback Kind = "fallback"
	// KindEmergency is returned by callers when generation itself broke.
	KindEmergency Kind = "emergency"
)

// Template is a SOP document with a templated title and summary.
type Template struct {
	Name       string         `yaml:"name"`
	Kind       Kind           `yaml:"kind"`
	Category   types.Category `yaml:"category"`
	Title      string         `yaml:"title"`
	Summary    string         `yaml:"summary"`
	Triggers   []string       `yaml:"triggers"`
	Guardrails []string       `yaml:"guardrails"`
	Tags       []string       `yaml:"tags"`
	Steps      []types.Step   `yaml:"steps"`

	// Description is the markdown body below the frontmatter.
	Description string `yaml:"-"`
	FilePath    string `yaml:"-"`

	title   *template.Template
	summary *template.Template
}

// Load reads all embedded markdown files and parses them into templates.
func Load() ([]*Template, error) {
	return LoadFS(templateFiles)
}

// LoadFS parses every .md file at the root of fsys.
func LoadFS(fsys fs.FS) ([]*Template, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading template directory: %w", err)
	}

	out := make([]*Template, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", entry.Name(), err)
		}

		tpl, err := parseTemplate(data, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}

		out = append(out, tpl)
	}

	return out, nil
}

func parseTemplate(data []byte, filename string) (*Template, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var tpl Template
	if err := yaml.Unmarshal(frontmatter, &tpl); err != nil {
		return nil, fmt.Errorf("unmarshaling frontmatter: %w", err)
	}

	tpl.Description = strings.TrimSpace(string(body))
	tpl.FilePath = filename

	if err := tpl.validate(); err != nil {
		return nil, err
	}

	if tpl.title, err = compile(tpl.Name+".title", tpl.Title); err != nil {
		return nil, err
	}

	if tpl.summary, err = compile(tpl.Name+".summary", tpl.Summary); err != nil {
		return nil, err
	}

	return &tpl, nil
}

func (t *Template) validate() error {
	var errs []error

	if t.Name == "" {
		errs = append(errs, errors.New("template must have a name"))
	}

	switch t.Kind {
	case KindStub, KindFallback, KindEmergency:
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", t.Kind))
	}

	if !t.Category.Valid() {
		errs = append(errs, fmt.Errorf("unknown category %q", t.Category))
	}

	if t.Title == "" {
		errs = append(errs, errors.New("template must have a title"))
	}

	if len(t.Steps) == 0 {
		errs = append(errs, errors.New("template must have at least one step"))
	}

	for i, s := range t.Steps {
		if s.Phase == "" || s.Action == "" || s.Owner == "" {
			errs = append(errs, fmt.Errorf("step %d needs phase, action and owner", i))
		}
	}

	return errors.Join(errs...)
}

// compile parses text and proves it renders against Vars so that Render
// cannot fail later.
func compile(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	if err := tpl.Execute(&bytes.Buffer{}, Vars{}); err != nil {
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}

	return tpl, nil
}

// splitFrontmatter separates YAML frontmatter from markdown body.
// Frontmatter must be delimited by "---" at the start and end.
func splitFrontmatter(data []byte) (frontmatter, body []byte, err error) {
	const delimiter = "---"

	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte(delimiter)) {
		return nil, nil, errors.New("file must start with YAML frontmatter delimiter '---'")
	}

	data = data[len(delimiter):]

	idx := bytes.Index(data, []byte("\n"+delimiter))
	if idx == -1 {
		return nil, nil, errors.New("missing closing frontmatter delimiter '---'")
	}

	frontmatter = bytes.TrimSpace(data[:idx])
	body = bytes.TrimSpace(data[idx+len("\n"+delimiter):])

	return frontmatter, body, nil
}

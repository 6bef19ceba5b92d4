// Package prompts renders the embedded prompt templates
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var embeddedPrompts []byte

// None is rendered for empty lists and missing options
const None = "(none)"

type templatePair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

var (
	loadOnce  sync.Once
	templates map[string]compiled
	loadErr   error
)

var funcs = template.FuncMap{
	"list": JoinList,
}

// JoinList joins items with ", " or returns "(none)"
func JoinList(items []string) string {
	if len(items) == 0 {
		return None
	}
	return strings.Join(items, ", ")
}

// Load parses the embedded templates; it is safe to call repeatedly
func Load() error {
	loadOnce.Do(func() {
		templates, loadErr = parse(embeddedPrompts)
	})
	return loadErr
}

func parse(raw []byte) (map[string]compiled, error) {
	var pairs map[string]templatePair
	if err := yaml.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}

	out := make(map[string]compiled, len(pairs))
	for name, pair := range pairs {
		sys, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=error").Parse(pair.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: system template: %w", name, err)
		}
		usr, err := template.New(name + ".user").Funcs(funcs).Option("missingkey=error").Parse(pair.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: user template: %w", name, err)
		}
		out[name] = compiled{system: sys, user: usr}
	}
	return out, nil
}

// Render executes the named prompt's system and user templates with data
func Render(name string, data any) (system, user string, err error) {
	if err := Load(); err != nil {
		return "", "", err
	}
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", name)
	}

	var sb, ub strings.Builder
	if err := t.system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	if err := t.user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}

// CompatibilityData fills the compatibility prompt
type CompatibilityData struct {
	Drug        string
	Allergies   []string
	Conditions  []string
	OngoingMeds []string
	LabelJSON   string
}

// Compatibility renders the drug compatibility prompt
func Compatibility(d CompatibilityData) (system, user string, err error) {
	return Render("compatibility", d)
}

// AlternativesData fills the alternatives prompt
type AlternativesData struct {
	Issue         string
	CurrentOption string
	Count         int
	ArticlesBlock string
	Min           int
	Max           int
}

// Alternatives renders the literature scout prompt
func Alternatives(d AlternativesData) (system, user string, err error) {
	return Render("alternatives", d)
}

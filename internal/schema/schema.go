// Package schema describes registration forms: ordered wizard steps, the
// fields each step collects, and which of those fields may be left empty.
package schema

import (
	"fmt"
	"strings"
)

// Kind identifies how a field is collected and serialized.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindTextarea Kind = "textarea"
	KindChoice   Kind = "choice"
	KindFile     Kind = "file"
)

// OptionalFields is the fixed allow-list of fields that never produce a
// required-field error, whatever step declares them.
var OptionalFields = map[string]struct{}{
	"companyLogo": {},
	"nidTdp":      {},
	"othersFile":  {},
}

// IsAllowListed reports whether name is in OptionalFields.
func IsAllowListed(name string) bool {
	_, ok := OptionalFields[name]
	return ok
}

// Field describes a single form input.
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Optional    bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// IsOptional reports whether the field may stay empty.
func (f Field) IsOptional() bool {
	return f.Optional || IsAllowListed(f.Name)
}

// IsFile reports whether the field carries an attachment.
func (f Field) IsFile() bool {
	return f.Kind == KindFile
}

// DisplayLabel returns the label or, when none is set, the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func (f Field) normalized() Field {
	clone := Field{
		Name:        strings.TrimSpace(f.Name),
		Label:       strings.TrimSpace(f.Label),
		Kind:        Kind(strings.ToLower(strings.TrimSpace(string(f.Kind)))),
		Optional:    f.Optional,
		Placeholder: strings.TrimSpace(f.Placeholder),
	}
	if clone.Kind == "" {
		clone.Kind = KindText
	}
	for _, option := range f.Options {
		if trimmed := strings.TrimSpace(option); trimmed != "" {
			clone.Options = append(clone.Options, trimmed)
		}
	}
	return clone
}

// Validate ensures the field is usable by the wizard.
func (f Field) Validate() error {
	normalized := f.normalized()
	if normalized.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(normalized.Name, " \t\n") {
		return fmt.Errorf("field %s: name must not contain whitespace", normalized.Name)
	}
	switch normalized.Kind {
	case KindText, KindEmail, KindTextarea, KindFile:
	case KindChoice:
		if len(normalized.Options) == 0 {
			return fmt.Errorf("field %s: choice fields need options", normalized.Name)
		}
	default:
		return fmt.Errorf("field %s: unknown kind %q", normalized.Name, normalized.Kind)
	}
	return nil
}

// Step groups the fields collected on one wizard page.
type Step struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// FieldNames returns the step's field names in declaration order.
func (s Step) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func (s Step) normalized() Step {
	clone := Step{
		ID:    strings.TrimSpace(s.ID),
		Title: strings.TrimSpace(s.Title),
	}
	if len(s.Fields) > 0 {
		clone.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			clone.Fields[i] = f.normalized()
		}
	}
	return clone
}

// Schema is a complete registration form.
type Schema struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// StepCount returns N, the number of wizard steps.
func (s Schema) StepCount() int {
	return len(s.Steps)
}

// StepAt returns the 1-based step n.
func (s Schema) StepAt(n int) (Step, bool) {
	if n < 1 || n > len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[n-1], true
}

// Field looks up a field by name across all steps.
func (s Schema) Field(name string) (Field, bool) {
	for _, step := range s.Steps {
		for _, f := range step.Fields {
			if f.Name == name {
				return f, true
			}
		}
	}
	return Field{}, false
}

// StepOf returns the 1-based step that declares name, or 0.
func (s Schema) StepOf(name string) int {
	for i, step := range s.Steps {
		for _, f := range step.Fields {
			if f.Name == name {
				return i + 1
			}
		}
	}
	return 0
}

// Fields returns every field in step order.
func (s Schema) Fields() []Field {
	var out []Field
	for _, step := range s.Steps {
		out = append(out, step.Fields...)
	}
	return out
}

// DisplayName returns Name, falling back to the ID.
func (s Schema) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Normalized returns a trimmed copy of the schema.
func (s Schema) Normalized() Schema {
	clone := Schema{
		ID:          strings.ToLower(strings.TrimSpace(s.ID)),
		Name:        strings.TrimSpace(s.Name),
		Description: strings.TrimSpace(s.Description),
		Version:     strings.TrimSpace(s.Version),
	}
	if len(s.Steps) > 0 {
		clone.Steps = make([]Step, len(s.Steps))
		for i, step := range s.Steps {
			clone.Steps[i] = step.normalized()
			if clone.Steps[i].ID == "" {
				clone.Steps[i].ID = fmt.Sprintf("step-%d", i+1)
			}
		}
	}
	return clone
}

// Validate ensures the schema can drive a wizard.
func (s Schema) Validate() error {
	normalized := s.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("schema: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("schema %s: version is required", normalized.ID)
	}
	if len(normalized.Steps) == 0 {
		return fmt.Errorf("schema %s: at least one step is required", normalized.ID)
	}
	seen := map[string]int{}
	for i, step := range normalized.Steps {
		if len(step.Fields) == 0 {
			return fmt.Errorf("schema %s: steps[%d]: at least one field is required", normalized.ID, i)
		}
		for j, f := range step.Fields {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("schema %s: steps[%d].fields[%d]: %w", normalized.ID, i, j, err)
			}
			if prev, exists := seen[f.Name]; exists {
				return fmt.Errorf("schema %s: duplicate field %s (steps %d and %d)", normalized.ID, f.Name, prev+1, i+1)
			}
			seen[f.Name] = i
		}
	}
	return nil
}

// Package wizard implements the multi-step registration form controller.
//
// A Wizard owns the form values, the per-field errors, and the current step.
// Validation is deferred to step transitions: typing never validates, moving
// forward always does, moving back never does.
package wizard

import (
	"context"
	"fmt"
	"sort"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/schema"
)

const (
	MsgRequired = "This field is required"
	MsgFileType = "Only image or PDF files are accepted"
)

// Value is a single form entry. The zero Value is null.
type Value struct {
	Text string
	File *documents.Attachment
}

// Present reports whether the value counts as filled in.
func (v Value) Present() bool {
	return v.File != nil || v.Text != ""
}

// Display renders the value for a form row.
func (v Value) Display() string {
	if v.File != nil {
		return v.File.Filename
	}
	return v.Text
}

// Submitter sends an encoded registration.
type Submitter interface {
	Register(ctx context.Context, payload *api.Payload) (api.Response, error)
}

// Logger is the subset of logbook used by the wizard.
type Logger interface {
	Printf(format string, args ...any)
}

// Outcome reports how a submission ended.
type Outcome struct {
	Success bool
	Message string
	Status  int
}

// Wizard drives one registration form instance.
type Wizard struct {
	schema     schema.Schema
	values     map[string]Value
	errors     map[string]string
	step       int
	submitting bool
	submitted  bool
	logger     Logger
}

// Option customizes a Wizard.
type Option func(*Wizard)

// WithLogger records transitions and submissions.
func WithLogger(l Logger) Option {
	return func(w *Wizard) {
		if l != nil {
			w.logger = l
		}
	}
}

// New starts an empty wizard at step 1.
func New(s schema.Schema, opts ...Option) (*Wizard, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}
	w := &Wizard{
		schema: s.Normalized(),
		values: map[string]Value{},
		errors: map[string]string{},
		step:   1,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Schema returns the form definition.
func (w *Wizard) Schema() schema.Schema { return w.schema }

// Step returns the current 1-based step.
func (w *Wizard) Step() int { return w.step }

// StepCount returns the number of steps.
func (w *Wizard) StepCount() int { return w.schema.StepCount() }

// IsLastStep reports whether submission is reachable.
func (w *Wizard) IsLastStep() bool { return w.step == w.schema.StepCount() }

// Submitting reports whether a submission is in flight.
func (w *Wizard) Submitting() bool { return w.submitting }

// Submitted reports whether a submission has succeeded.
func (w *Wizard) Submitted() bool { return w.submitted }

// Value returns the current value for name.
func (w *Wizard) Value(name string) Value { return w.values[name] }

// Error returns the current error for name, if any.
func (w *Wizard) Error(name string) string { return w.errors[name] }

// Errors returns a copy of the current field errors.
func (w *Wizard) Errors() map[string]string {
	out := make(map[string]string, len(w.errors))
	for k, v := range w.errors {
		out[k] = v
	}
	return out
}

// UpdateField stores value under name and clears its error. No validation runs.
func (w *Wizard) UpdateField(name, value string) {
	w.values[name] = Value{Text: value}
	delete(w.errors, name)
}

// UpdateFile stores an attachment if it is an image or a PDF. A rejected
// attachment records an error and leaves the previous value in place. A nil
// attachment clears the field.
func (w *Wizard) UpdateFile(name string, att *documents.Attachment) bool {
	if att == nil {
		delete(w.values, name)
		delete(w.errors, name)
		return true
	}
	if !att.Accepted() {
		w.errors[name] = MsgFileType
		w.logger.Printf("wizard: rejected %s for %s (%s)", att.Filename, name, att.ContentType)
		return false
	}
	w.values[name] = Value{File: att}
	delete(w.errors, name)
	return true
}

// ValidateStep checks that every name is present unless optional. FieldErrors
// is replaced with the result.
func (w *Wizard) ValidateStep(names []string) bool {
	errs := map[string]string{}
	for _, name := range names {
		if w.values[name].Present() || w.optional(name) {
			continue
		}
		errs[name] = MsgRequired
	}
	w.errors = errs
	return len(errs) == 0
}

// Advance moves forward one step if the current step validates.
func (w *Wizard) Advance() bool {
	if w.IsLastStep() {
		return false
	}
	if !w.ValidateStep(w.stepFields(w.step)) {
		w.logger.Printf("wizard: step %d has %d missing field(s)", w.step, len(w.errors))
		return false
	}
	w.step++
	return true
}

// Retreat moves back one step without validating. Step 1 is the floor.
func (w *Wizard) Retreat() {
	if w.step > 1 {
		w.step--
	}
}

// Prepare validates the whole form and marks a submission in flight. Step never
// changes here: a failing earlier step is reported through ValidationError.Step
// and its field errors stay recorded for when the user goes back. The returned
// payload must be handed to a Submitter and its result passed to Complete.
func (w *Wizard) Prepare() (*api.Payload, error) {
	if w.submitting {
		return nil, ErrInFlight
	}
	if !w.IsLastStep() {
		return nil, ErrNotLastStep
	}
	for n := 1; n <= w.schema.StepCount(); n++ {
		if !w.ValidateStep(w.stepFields(n)) {
			return nil, &ValidationError{Step: n, Fields: w.Errors()}
		}
	}
	w.submitting = true
	return w.payload(), nil
}

// Complete records the result of a prepared submission.
func (w *Wizard) Complete(resp api.Response, err error) Outcome {
	w.submitting = false
	if err != nil {
		msg := api.MessageFor(err)
		w.logger.Printf("wizard: submit %s failed: %v", w.schema.ID, err)
		return Outcome{Message: msg, Status: resp.Status}
	}
	w.submitted = true
	w.logger.Printf("wizard: submit %s accepted (%d)", w.schema.ID, resp.Status)
	return Outcome{Success: true, Message: resp.Message, Status: resp.Status}
}

// Submit validates, sends, and records the result in one call.
func (w *Wizard) Submit(ctx context.Context, submitter Submitter) (Outcome, error) {
	payload, err := w.Prepare()
	if err != nil {
		return Outcome{}, err
	}
	resp, err := submitter.Register(ctx, payload)
	return w.Complete(resp, err), nil
}

// Snapshot is a read-only view of the wizard for rendering.
type Snapshot struct {
	SchemaID   string
	Step       int
	StepCount  int
	StepTitle  string
	Fields     []schema.Field
	Values     map[string]string
	Errors     map[string]string
	Submitting bool
}

// Progress returns the completed fraction of steps.
func (s Snapshot) Progress() float64 {
	if s.StepCount == 0 {
		return 0
	}
	return float64(s.Step) / float64(s.StepCount)
}

// Snapshot copies the current state.
func (w *Wizard) Snapshot() Snapshot {
	step, _ := w.schema.StepAt(w.step)
	values := make(map[string]string, len(w.values))
	for k, v := range w.values {
		values[k] = v.Display()
	}
	fields := make([]schema.Field, len(step.Fields))
	copy(fields, step.Fields)
	return Snapshot{
		SchemaID:   w.schema.ID,
		Step:       w.step,
		StepCount:  w.schema.StepCount(),
		StepTitle:  step.Title,
		Fields:     fields,
		Values:     values,
		Errors:     w.Errors(),
		Submitting: w.submitting,
	}
}

func (w *Wizard) stepFields(n int) []string {
	step, ok := w.schema.StepAt(n)
	if !ok {
		return nil
	}
	return step.FieldNames()
}

func (w *Wizard) optional(name string) bool {
	if f, ok := w.schema.Field(name); ok {
		return f.IsOptional()
	}
	return schema.IsAllowListed(name)
}

// payload serializes every schema field in order, null values as empty
// strings, followed by any extra keys in sorted order.
func (w *Wizard) payload() *api.Payload {
	p := api.NewPayload()
	seen := map[string]struct{}{}
	for _, f := range w.schema.Fields() {
		seen[f.Name] = struct{}{}
		appendValue(p, f.Name, w.values[f.Name])
	}
	var extra []string
	for name := range w.values {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		appendValue(p, name, w.values[name])
	}
	return p
}

func appendValue(p *api.Payload, name string, v Value) {
	if v.File != nil {
		p.AddFile(name, v.File)
		return
	}
	p.AddField(name, v.Text)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/schema"
	"github.com/kingrea/onboard/internal/wizard"
)

// attachmentLoadedMsg carries the result of reading a file field's path.
type attachmentLoadedMsg struct {
	field string
	path  string
	att   *documents.Attachment
	err   error
}

// fieldInput is the editor for one schema field.
type fieldInput struct {
	field  schema.Field
	text   textinput.Model
	area   textarea.Model
	choice int
}

func (f *fieldInput) value() string {
	switch f.field.Kind {
	case schema.KindTextarea:
		return f.area.Value()
	case schema.KindChoice:
		if f.choice < 0 || f.choice >= len(f.field.Options) {
			return ""
		}
		return f.field.Options[f.choice]
	default:
		return f.text.Value()
	}
}

func (f *fieldInput) focus() tea.Cmd {
	switch f.field.Kind {
	case schema.KindTextarea:
		return f.area.Focus()
	case schema.KindChoice:
		return nil
	default:
		return f.text.Focus()
	}
}

func (f *fieldInput) blur() {
	switch f.field.Kind {
	case schema.KindTextarea:
		f.area.Blur()
	case schema.KindChoice:
	default:
		f.text.Blur()
	}
}

// registerView renders the wizard's current step as an editable form.
type registerView struct {
	wizard *wizard.Wizard
	loader *documents.Loader
	ctx    context.Context

	fields []schema.Field
	inputs []*fieldInput
	paths  map[string]string
	focus  int
	width  int

	// loading holds the path being read for each file field.
	loading map[string]string
}

func newRegisterView(ctx context.Context, w *wizard.Wizard, loader *documents.Loader) *registerView {
	v := &registerView{
		wizard:  w,
		loader:  loader,
		ctx:     ctx,
		paths:   map[string]string{},
		loading: map[string]string{},
		width:   60,
	}
	v.rebuild()
	return v
}

// rebuild recreates the inputs for the wizard's current step.
func (v *registerView) rebuild() tea.Cmd {
	v.fields = v.wizard.Snapshot().Fields
	v.inputs = make([]*fieldInput, len(v.fields))
	for i, field := range v.fields {
		in := &fieldInput{field: field, choice: -1}
		current := v.wizard.Value(field.Name)
		switch field.Kind {
		case schema.KindTextarea:
			in.area = textarea.New()
			in.area.Placeholder = field.Placeholder
			in.area.ShowLineNumbers = false
			in.area.SetHeight(3)
			in.area.SetWidth(max(20, v.width-4))
			in.area.SetValue(current.Text)
			in.area.Cursor.SetMode(cursor.CursorStatic)
		case schema.KindChoice:
			for idx, option := range field.Options {
				if option == current.Text {
					in.choice = idx
				}
			}
		default:
			in.text = textinput.New()
			in.text.Prompt = "› "
			in.text.Width = max(20, v.width-6)
			in.text.Placeholder = field.Placeholder
			in.text.Cursor.SetMode(cursor.CursorStatic)
			if field.IsFile() {
				in.text.Placeholder = "path or URL, enter to attach"
				in.text.SetValue(v.paths[field.Name])
			} else {
				in.text.SetValue(current.Text)
			}
		}
		v.inputs[i] = in
	}
	v.focus = 0
	return v.focusCurrent()
}

// focusFirstError moves focus to the first field carrying an error.
func (v *registerView) focusFirstError() tea.Cmd {
	for i, in := range v.inputs {
		if v.wizard.Error(in.field.Name) != "" {
			v.focus = i
			break
		}
	}
	return v.focusCurrent()
}

func (v *registerView) focusCurrent() tea.Cmd {
	var cmd tea.Cmd
	for i, in := range v.inputs {
		if i == v.focus {
			cmd = in.focus()
			continue
		}
		in.blur()
	}
	return cmd
}

func (v *registerView) current() *fieldInput {
	if v.focus < 0 || v.focus >= len(v.inputs) {
		return nil
	}
	return v.inputs[v.focus]
}

// moveFocus cycles focus by delta. Leaving a file field attaches its path.
func (v *registerView) moveFocus(delta int) tea.Cmd {
	if len(v.inputs) == 0 {
		return nil
	}
	attach := v.attachIfChanged()
	v.focus = (v.focus + delta + len(v.inputs)) % len(v.inputs)
	return tea.Batch(attach, v.focusCurrent())
}

// attachIfChanged starts loading the focused file field when its path differs
// from the one last attached.
func (v *registerView) attachIfChanged() tea.Cmd {
	in := v.current()
	if in == nil || !in.field.IsFile() {
		return nil
	}
	path := strings.TrimSpace(in.text.Value())
	if path == v.paths[in.field.Name] {
		return nil
	}
	v.paths[in.field.Name] = path
	if path == "" {
		delete(v.loading, in.field.Name)
		v.wizard.UpdateFile(in.field.Name, nil)
		return nil
	}
	v.loading[in.field.Name] = path
	return v.attachCmd(in.field.Name, path)
}

func (v *registerView) attachCmd(field, path string) tea.Cmd {
	loader := v.loader
	ctx := v.ctx
	return func() tea.Msg {
		att, err := loader.LoadField(ctx, field, path)
		return attachmentLoadedMsg{field: field, path: path, att: att, err: err}
	}
}

// currentAttachment reports whether msg still matches the path entered for
// its field. A current result ends that field's load.
func (v *registerView) currentAttachment(msg attachmentLoadedMsg) bool {
	if v.paths[msg.field] != msg.path {
		return false
	}
	if v.loading[msg.field] == msg.path {
		delete(v.loading, msg.field)
	}
	return true
}

// loadingAttachments reports whether any file field is still being read.
func (v *registerView) loadingAttachments() bool {
	return len(v.loading) > 0
}

// applyAttachment stores a loaded attachment. A failed load forgets the path
// so that the same path can be retried.
func (v *registerView) applyAttachment(msg attachmentLoadedMsg) bool {
	if msg.err != nil {
		v.paths[msg.field] = ""
		return false
	}
	return v.wizard.UpdateFile(msg.field, msg.att)
}

// update routes a key to the focused input and syncs the value into the wizard.
func (v *registerView) update(msg tea.KeyMsg) tea.Cmd {
	in := v.current()
	if in == nil {
		return nil
	}
	var cmd tea.Cmd
	switch in.field.Kind {
	case schema.KindChoice:
		switch msg.String() {
		case "left", "h":
			if in.choice > 0 {
				in.choice--
			} else {
				in.choice = len(in.field.Options) - 1
			}
		case "right", "l", " ":
			in.choice = (in.choice + 1) % len(in.field.Options)
		default:
			return nil
		}
	case schema.KindTextarea:
		in.area, cmd = in.area.Update(msg)
	default:
		if in.field.IsFile() && msg.Type == tea.KeyEnter {
			return v.attachIfChanged()
		}
		in.text, cmd = in.text.Update(msg)
		if in.field.IsFile() {
			return cmd
		}
	}
	if value := in.value(); value != v.wizard.Value(in.field.Name).Text {
		v.wizard.UpdateField(in.field.Name, value)
	}
	return cmd
}

func (v *registerView) setWidth(width int) {
	v.width = width
	for _, in := range v.inputs {
		switch in.field.Kind {
		case schema.KindTextarea:
			in.area.SetWidth(max(20, width-4))
		case schema.KindChoice:
		default:
			in.text.Width = max(20, width-6)
		}
	}
}

// View renders the step. A non-empty status replaces the key hints.
func (v *registerView) View(status string) string {
	snap := v.wizard.Snapshot()
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("%s · Step %d of %d · %s", v.wizard.Schema().DisplayName(), snap.Step, snap.StepCount, snap.StepTitle))
	lines := []string{title, renderProgress(snap.Progress(), max(20, v.width-4)), ""}

	labelStyle := lipgloss.NewStyle().Bold(true)
	focusStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	for i, in := range v.inputs {
		label := in.field.DisplayLabel()
		if !in.field.IsOptional() {
			label += " *"
		}
		if i == v.focus {
			lines = append(lines, focusStyle.Render("▸ "+label))
		} else {
			lines = append(lines, labelStyle.Render("  "+label))
		}
		switch in.field.Kind {
		case schema.KindTextarea:
			lines = append(lines, in.area.View())
		case schema.KindChoice:
			lines = append(lines, renderChoice(in))
		default:
			lines = append(lines, in.text.View())
			if in.field.IsFile() {
				if att := v.wizard.Value(in.field.Name).File; att != nil {
					lines = append(lines, hintStyle.Render(fmt.Sprintf("  attached %s (%s, %d bytes)", att.Filename, att.ContentType, att.Size)))
				}
			}
		}
		if msg := snap.Errors[in.field.Name]; msg != "" {
			lines = append(lines, errStyle.Render("  "+msg))
		}
		lines = append(lines, "")
	}

	var hint string
	switch {
	case status != "":
		hint = status
	case v.wizard.IsLastStep():
		hint = "tab next field · ctrl+p previous step · ctrl+s submit · esc menu"
	case snap.Step > 1:
		hint = "tab next field · ctrl+p previous step · ctrl+n next step · esc menu"
	default:
		hint = "tab next field · ctrl+n next step · esc menu"
	}
	lines = append(lines, hintStyle.Render(hint))
	return strings.Join(lines, "\n")
}

func renderChoice(in *fieldInput) string {
	parts := make([]string, len(in.field.Options))
	selected := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	plain := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	for i, option := range in.field.Options {
		if i == in.choice {
			parts[i] = selected.Render("(•) " + option)
		} else {
			parts[i] = plain.Render("( ) " + option)
		}
	}
	return "  " + strings.Join(parts, "  ")
}

func renderProgress(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Render(bar)
}

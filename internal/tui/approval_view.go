package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/approval"
	"github.com/kingrea/onboard/internal/notify"
)

type decisionResultMsg struct {
	resp api.Response
	err  error
}

type approvalControl int

const (
	controlApprove approvalControl = iota
	controlReject
	controlReason
	controlSubmitReject
)

// approvalView shows the decoded claim and the approve/reject controls.
type approvalView struct {
	gate   *approval.Gate
	reason textinput.Model
	focus  approvalControl
}

func newApprovalView(gate *approval.Gate) *approvalView {
	reason := textinput.New()
	reason.Prompt = "› "
	reason.Placeholder = "Reason for rejection"
	reason.CharLimit = 500
	reason.Width = 48
	reason.Cursor.SetMode(cursor.CursorStatic)
	return &approvalView{gate: gate, reason: reason}
}

func (v *approvalView) controls() []approvalControl {
	if v.gate.ReasonVisible() {
		return []approvalControl{controlApprove, controlReject, controlReason, controlSubmitReject}
	}
	return []approvalControl{controlApprove, controlReject}
}

func (v *approvalView) moveFocus(delta int) tea.Cmd {
	controls := v.controls()
	idx := 0
	for i, c := range controls {
		if c == v.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(controls)) % len(controls)
	return v.setFocus(controls[idx])
}

func (v *approvalView) setFocus(c approvalControl) tea.Cmd {
	v.focus = c
	if c == controlReason {
		return v.reason.Focus()
	}
	v.reason.Blur()
	return nil
}

// activate runs the focused control. It returns either a notice for an
// immediate local outcome or a command that sends the decision.
func (v *approvalView) activate(send func(api.Decision) tea.Cmd) (*notify.Notice, tea.Cmd) {
	switch v.focus {
	case controlApprove:
		decision, err := v.gate.PrepareApprove()
		if err != nil {
			n := approval.NoticeFor(err)
			return &n, nil
		}
		return nil, send(decision)
	case controlReject:
		v.gate.RequestReject()
		return nil, v.setFocus(controlReason)
	case controlReason, controlSubmitReject:
		decision, err := v.gate.PrepareReject(v.reason.Value())
		if err != nil {
			n := approval.NoticeFor(err)
			return &n, nil
		}
		return nil, send(decision)
	}
	return nil, nil
}

func (v *approvalView) update(msg tea.KeyMsg) tea.Cmd {
	if v.focus != controlReason {
		return nil
	}
	var cmd tea.Cmd
	v.reason, cmd = v.reason.Update(msg)
	return cmd
}

func (v *approvalView) View(busy string) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Registration approval")
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(16)
	claim := v.gate.Claim()
	lines := []string{
		title,
		"",
		labelStyle.Render("Name") + claim.Name,
		labelStyle.Render("Email") + claim.Email,
		labelStyle.Render("Business") + claim.BusinessName,
		"",
	}

	buttons := []string{
		renderButton("Approve", v.focus == controlApprove, "#3FB950"),
		renderButton("Reject", v.focus == controlReject, "#FF5F5F"),
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, buttons...))

	if v.gate.ReasonVisible() {
		lines = append(lines, "", "Reason", v.reason.View(), renderButton("Submit rejection", v.focus == controlSubmitReject, "#FF5F5F"))
	}

	hint := "tab move · enter select · esc menu"
	switch {
	case busy != "":
		hint = busy + " Sending decision..."
	case v.gate.Decided():
		hint = "decision recorded · esc menu"
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(hint))
	return strings.Join(lines, "\n")
}

func renderButton(label string, focused bool, color string) string {
	style := lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	if focused {
		style = style.BorderForeground(lipgloss.Color(color)).Foreground(lipgloss.Color(color)).Bold(true)
	} else {
		style = style.BorderForeground(lipgloss.Color("#444444"))
	}
	return style.Render(label)
}

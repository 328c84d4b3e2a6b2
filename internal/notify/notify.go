// Package notify holds the single transient notification slot shared by the
// registration and approval screens.
package notify

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultDelay is how long a notification stays visible.
const DefaultDelay = 3 * time.Second

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notice is one (kind, message) pair.
type Notice struct {
	Kind    Kind
	Message string
}

// Success builds a success notice.
func Success(message string) Notice { return Notice{Kind: KindSuccess, Message: message} }

// Error builds an error notice.
func Error(message string) Notice { return Notice{Kind: KindError, Message: message} }

// ClearMsg asks the center to drop the notice shown under Seq.
type ClearMsg struct {
	Seq int
}

// Center keeps at most one active notice. Each Show supersedes the previous
// notice and schedules its own clear; clears for superseded notices are ignored.
type Center struct {
	current *Notice
	seq     int
	delay   time.Duration
}

// NewCenter returns a center that clears notices after delay.
func NewCenter(delay time.Duration) *Center {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Center{delay: delay}
}

// Delay returns the auto-clear delay.
func (c *Center) Delay() time.Duration { return c.delay }

// Show replaces the active notice and returns the command that clears it.
func (c *Center) Show(kind Kind, message string) tea.Cmd {
	return c.Post(Notice{Kind: kind, Message: message})
}

// Post is Show for a prepared Notice.
func (c *Center) Post(n Notice) tea.Cmd {
	c.seq++
	c.current = &n
	seq := c.seq
	return tea.Tick(c.delay, func(time.Time) tea.Msg {
		return ClearMsg{Seq: seq}
	})
}

// Update applies a ClearMsg. It reports whether the message belonged to the center.
func (c *Center) Update(msg tea.Msg) bool {
	done, ok := msg.(ClearMsg)
	if !ok {
		return false
	}
	if done.Seq == c.seq {
		c.current = nil
	}
	return true
}

// Hide dismisses the active notice immediately.
func (c *Center) Hide() {
	c.current = nil
}

// Current returns the active notice.
func (c *Center) Current() (Notice, bool) {
	if c.current == nil {
		return Notice{}, false
	}
	return *c.current, true
}

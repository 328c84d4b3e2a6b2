// Package approval implements the administrator gate for a pending
// registration. The token is decoded locally for display only; the decision
// itself is authorized server-side by replaying the raw token.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/notify"
)

const (
	MsgInvalidToken   = "Invalid token"
	MsgReasonRequired = "Please provide a reason for rejection"
)

var (
	// ErrInFlight is returned while a decision request is pending.
	ErrInFlight = errors.New("approval: decision already in flight")
	// ErrReasonRequired is returned for a blank rejection reason.
	ErrReasonRequired = errors.New("approval: " + strings.ToLower(MsgReasonRequired))
)

// Claim is the display projection of an approval token.
type Claim struct {
	Name         string
	Email        string
	BusinessName string
}

// Empty reports whether no claim field was decoded.
func (c Claim) Empty() bool {
	return c.Name == "" && c.Email == "" && c.BusinessName == ""
}

// DecodeClaim reads the token payload without verifying its signature.
func DecodeClaim(token string) (Claim, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claim{}, fmt.Errorf("approval: token is empty")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claim{}, fmt.Errorf("approval: decode token: %w", err)
	}
	return Claim{
		Name:         stringClaim(claims, "name"),
		Email:        stringClaim(claims, "email"),
		BusinessName: stringClaim(claims, "businessName"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Decider sends a decision for a token.
type Decider interface {
	Decide(ctx context.Context, token string, decision api.Decision) (api.Response, error)
}

// Logger is the subset of logbook used by the gate.
type Logger interface {
	Printf(format string, args ...any)
}

// Gate tracks one approval page.
type Gate struct {
	token      string
	claim      Claim
	claimErr   error
	showReason bool
	inFlight   bool
	decided    bool
	logger     Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithLogger records decisions.
func WithLogger(l Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New prepares a gate for token. Call LoadClaim to decode it.
func New(token string, opts ...Option) *Gate {
	g := &Gate{token: strings.TrimSpace(token), logger: nopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Token returns the raw token replayed to the server.
func (g *Gate) Token() string { return g.token }

// Claim returns the decoded claim; blank when decoding failed.
func (g *Gate) Claim() Claim { return g.claim }

// ClaimErr returns the decode failure, if any.
func (g *Gate) ClaimErr() error { return g.claimErr }

// ReasonVisible reports whether the rejection reason input is shown.
func (g *Gate) ReasonVisible() bool { return g.showReason }

// InFlight reports whether a decision request is pending.
func (g *Gate) InFlight() bool { return g.inFlight }

// Decided reports whether a decision has been accepted by the server.
func (g *Gate) Decided() bool { return g.decided }

// LoadClaim decodes the token. On failure it returns an "Invalid token"
// notice and leaves the claim blank; the actions stay available.
func (g *Gate) LoadClaim() *notify.Notice {
	claim, err := DecodeClaim(g.token)
	if err != nil {
		g.claim = Claim{}
		g.claimErr = err
		g.logger.Printf("approval: %v", err)
		n := notify.Error(MsgInvalidToken)
		return &n
	}
	g.claim = claim
	g.claimErr = nil
	return nil
}

// RequestReject reveals the rejection reason input.
func (g *Gate) RequestReject() {
	g.showReason = true
}

// PrepareApprove hides the reason input and marks an approve request in flight.
func (g *Gate) PrepareApprove() (api.Decision, error) {
	if g.inFlight {
		return api.Decision{}, ErrInFlight
	}
	g.showReason = false
	g.inFlight = true
	return api.Approve(), nil
}

// PrepareReject checks the reason and marks a reject request in flight.
func (g *Gate) PrepareReject(reason string) (api.Decision, error) {
	if g.inFlight {
		return api.Decision{}, ErrInFlight
	}
	if strings.TrimSpace(reason) == "" {
		return api.Decision{}, ErrReasonRequired
	}
	g.inFlight = true
	return api.Reject(reason), nil
}

// Complete records the result of a prepared decision and returns the notice to show.
func (g *Gate) Complete(resp api.Response, err error) notify.Notice {
	g.inFlight = false
	if err != nil {
		g.logger.Printf("approval: decision failed: %v", err)
		return notify.Error(api.MessageFor(err))
	}
	g.decided = true
	g.logger.Printf("approval: decision accepted (%d)", resp.Status)
	return notify.Success(resp.Message)
}

// Approve sends an approve decision.
func (g *Gate) Approve(ctx context.Context, d Decider) notify.Notice {
	decision, err := g.PrepareApprove()
	if err != nil {
		return NoticeFor(err)
	}
	return g.Complete(d.Decide(ctx, g.token, decision))
}

// Reject sends a reject decision. A blank reason issues no request.
func (g *Gate) Reject(ctx context.Context, d Decider, reason string) notify.Notice {
	decision, err := g.PrepareReject(reason)
	if err != nil {
		return NoticeFor(err)
	}
	return g.Complete(d.Decide(ctx, g.token, decision))
}

// NoticeFor maps a Prepare error to the notice shown to the user.
func NoticeFor(err error) notify.Notice {
	switch {
	case errors.Is(err, ErrReasonRequired):
		return notify.Error(MsgReasonRequired)
	case errors.Is(err, ErrInFlight):
		return notify.Notice{Kind: notify.KindInfo, Message: "Please wait for the current request"}
	default:
		return notify.Error(api.MessageFor(err))
	}
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

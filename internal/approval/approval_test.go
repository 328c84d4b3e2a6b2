package approval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/notify"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return token
}

type recordingServer struct {
	*httptest.Server
	mu     sync.Mutex
	calls  int
	bodies []string
}

func newRecordingServer(t *testing.T, status int, body string) *recordingServer {
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.calls++
		rs.bodies = append(rs.bodies, string(data))
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.calls
}

func (rs *recordingServer) body(i int) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bodies[i]
}

func TestLoadClaimDecodesWithoutVerification(t *testing.T) {
	g := New(signedToken(t, jwt.MapClaims{"name": "Jane", "email": "jane@x.com"}))
	assert.Nil(t, g.LoadClaim())
	assert.Equal(t, Claim{Name: "Jane", Email: "jane@x.com"}, g.Claim())
	assert.NoError(t, g.ClaimErr())
}

func TestLoadClaimInvalidTokenKeepsActionsAvailable(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"message":"Approved"}`)
	g := New("not-a-token")

	n := g.LoadClaim()
	require.NotNil(t, n)
	assert.Equal(t, notify.Error(MsgInvalidToken), *n)
	assert.True(t, g.Claim().Empty())

	got := g.Approve(context.Background(), api.NewClient(srv.URL))
	assert.Equal(t, notify.Success("Approved"), got)
	assert.Equal(t, 1, srv.count())
}

func TestApproveShowsServerMessage(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"message":"Approved"}`)
	g := New(signedToken(t, jwt.MapClaims{"name": "Jane", "email": "jane@x.com"}))
	g.LoadClaim()
	g.RequestReject()

	n := g.Approve(context.Background(), api.NewClient(srv.URL))
	assert.Equal(t, notify.KindSuccess, n.Kind)
	assert.Equal(t, "Approved", n.Message)
	assert.False(t, g.ReasonVisible())
	assert.True(t, g.Decided())
	assert.False(t, g.InFlight())
	require.Equal(t, 1, srv.count())
	assert.JSONEq(t, `{"action":"approve"}`, srv.body(0))
}

func TestRejectWithBlankReasonSendsNothing(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"message":"Rejected"}`)
	g := New("tok")
	g.RequestReject()

	for _, reason := range []string{"", "   \t"} {
		n := g.Reject(context.Background(), api.NewClient(srv.URL), reason)
		assert.Equal(t, notify.Error(MsgReasonRequired), n)
	}
	assert.Zero(t, srv.count())
	assert.False(t, g.InFlight())
	assert.True(t, g.ReasonVisible())
}

func TestRejectSendsReason(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"message":"Rejected"}`)
	g := New("tok")
	g.RequestReject()

	n := g.Reject(context.Background(), api.NewClient(srv.URL), "reason text")
	assert.Equal(t, notify.Success("Rejected"), n)
	require.Equal(t, 1, srv.count())
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(srv.body(0)), &body))
	assert.Equal(t, map[string]string{"action": "reject", "rejectReason": "reason text"}, body)
}

func TestDecisionFailureMessages(t *testing.T) {
	srv := newRecordingServer(t, http.StatusGone, `{"message":"Token expired"}`)
	g := New("tok")
	n := g.Approve(context.Background(), api.NewClient(srv.URL))
	assert.Equal(t, notify.Error("Token expired"), n)
	assert.False(t, g.Decided())

	bare := newRecordingServer(t, http.StatusBadGateway, ``)
	n = g.Approve(context.Background(), api.NewClient(bare.URL))
	assert.Equal(t, notify.Error(api.FallbackMessage), n)
}

func TestInFlightGuard(t *testing.T) {
	g := New("tok")
	_, err := g.PrepareApprove()
	require.NoError(t, err)
	assert.True(t, g.InFlight())

	_, err = g.PrepareApprove()
	assert.ErrorIs(t, err, ErrInFlight)
	_, err = g.PrepareReject("late")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, notify.KindInfo, NoticeFor(err).Kind)

	g.Complete(api.Response{Status: http.StatusOK, Message: "Approved"}, nil)
	assert.False(t, g.InFlight())
}

func TestDecodeClaimBusinessName(t *testing.T) {
	claim, err := DecodeClaim(signedToken(t, jwt.MapClaims{"businessName": "Acme", "name": 42}))
	require.NoError(t, err)
	assert.Equal(t, Claim{BusinessName: "Acme"}, claim)

	_, err = DecodeClaim("  ")
	assert.Error(t, err)
}

package sandbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/approval"
	"github.com/kingrea/onboard/internal/config"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/notify"
	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/schema"
	"github.com/kingrea/onboard/internal/wizard"
)

type issued struct {
	mu     sync.Mutex
	tokens []string
	links  []string
}

func (i *issued) hook(_ Registration, token, link string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens = append(i.tokens, token)
	i.links = append(i.links, link)
}

func (i *issued) last(t *testing.T) (string, string) {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.tokens) == 0 {
		t.Fatalf("no approval link issued")
	}
	n := len(i.tokens) - 1
	return i.tokens[n], i.links[n]
}

func testSettings() Settings {
	return Settings{Enabled: true, Host: "127.0.0.1", Secret: "test-secret", MaxBodyBytes: 1 << 20, TokenTTL: time.Hour, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *issued) {
	t.Helper()
	links := &issued{}
	srv := NewServer(testSettings(), WithApprovalHook(links.hook))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, links
}

func pdf(name string) *documents.Attachment {
	return &documents.Attachment{Filename: name + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
}

func completedBusinessWizard(t *testing.T, email string) *wizard.Wizard {
	t.Helper()
	w, err := wizard.New(schema.Business())
	if err != nil {
		t.Fatalf("new wizard: %v", err)
	}
	w.UpdateField("businessName", "Acme")
	w.UpdateField("businessManager", "Jane")
	w.UpdateField("email", email)
	w.UpdateField("businessAddress", "1 Main St")
	if !w.Advance() {
		t.Fatalf("advance step 1: %v", w.Errors())
	}
	for _, name := range []string{"bankName", "bankLocation", "bankNumber", "bankAccount"} {
		w.UpdateField(name, "x")
	}
	if !w.Advance() {
		t.Fatalf("advance step 2: %v", w.Errors())
	}
	for _, name := range []string{"npwp", "sipNib", "ktp", "aktaPendirian", "aktaPengesahanPendirian"} {
		w.UpdateFile(name, pdf(name))
	}
	return w
}

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv(EnvPort, "9001")
	t.Setenv(EnvHost, "0.0.0.0")
	t.Setenv(EnvEnabled, "false")
	settings := SettingsFromConfig(&config.Config{})
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Enabled {
		t.Fatalf("expected enabled=false from env override")
	}
	if settings.Secret == "" || settings.TokenTTL != DefaultTokenTTL {
		t.Fatalf("expected defaults applied, got %+v", settings)
	}
}

func TestRegisterApproveFlow(t *testing.T) {
	srv, ts, links := newTestServer(t)
	ctx := context.Background()
	client := api.NewClient(ts.URL)

	out, err := completedBusinessWizard(t, "jane@x.com").Submit(ctx, client)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Success || out.Status != http.StatusCreated {
		t.Fatalf("unexpected outcome %+v", out)
	}

	token, link := links.last(t)
	target, err := routes.Resolve(link)
	if err != nil || target.Screen != routes.ScreenApproval || target.Token != token {
		t.Fatalf("approval link %s resolved to %+v (%v)", link, target, err)
	}

	gate := approval.New(target.Token)
	if n := gate.LoadClaim(); n != nil {
		t.Fatalf("unexpected notice %+v", n)
	}
	if claim := gate.Claim(); claim.Name != "Jane" || claim.Email != "jane@x.com" || claim.BusinessName != "Acme" {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if n := gate.Approve(ctx, client); n != notify.Success("Registration approved") {
		t.Fatalf("unexpected approve notice %+v", n)
	}
	regs := srv.Store().List()
	if len(regs) != 1 || regs[0].Status != StatusApproved || regs[0].SchemaID != schema.BusinessID {
		t.Fatalf("unexpected store state %+v", regs)
	}
	if regs[0].Files["npwp"].ContentType != "application/pdf" {
		t.Fatalf("expected npwp metadata, got %+v", regs[0].Files)
	}

	if n := gate.Approve(ctx, client); n != notify.Error("Registration already approved") {
		t.Fatalf("expected conflict on second decision, got %+v", n)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	srv, ts, links := newTestServer(t)
	ctx := context.Background()
	client := api.NewClient(ts.URL)
	if _, err := completedBusinessWizard(t, "rej@x.com").Submit(ctx, client); err != nil {
		t.Fatalf("submit: %v", err)
	}
	token, _ := links.last(t)

	gate := approval.New(token)
	gate.RequestReject()
	if n := gate.Reject(ctx, client, "NPWP expired"); n != notify.Success("Registration rejected") {
		t.Fatalf("unexpected reject notice %+v", n)
	}
	regs := srv.Store().List()
	if regs[0].Status != StatusRejected || regs[0].RejectReason != "NPWP expired" {
		t.Fatalf("unexpected registration %+v", regs[0])
	}

	// A rejected email may register again.
	out, err := completedBusinessWizard(t, "rej@x.com").Submit(ctx, client)
	if err != nil || !out.Success {
		t.Fatalf("expected resubmission to succeed: %+v %v", out, err)
	}
}

func TestRegisterFailures(t *testing.T) {
	_, ts, _ := newTestServer(t)
	ctx := context.Background()
	client := api.NewClient(ts.URL)

	if _, err := completedBusinessWizard(t, "dup@x.com").Submit(ctx, client); err != nil {
		t.Fatalf("submit: %v", err)
	}
	out, _ := completedBusinessWizard(t, "dup@x.com").Submit(ctx, client)
	if out.Success || out.Message != "Email already registered" {
		t.Fatalf("expected duplicate rejection, got %+v", out)
	}

	partial := api.NewPayload()
	partial.AddField("businessName", "Acme")
	_, err := client.Register(ctx, partial)
	if msg := api.MessageFor(err); !strings.HasPrefix(msg, "Missing required fields: ") || !strings.Contains(msg, "email") {
		t.Fatalf("unexpected missing-fields message %q", msg)
	}

	bad := api.NewPayload()
	bad.AddFile("ktp", &documents.Attachment{Filename: "ktp.txt", ContentType: "text/plain", Data: []byte("x")})
	_, err = client.Register(ctx, bad)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %v", err)
	}
}

func TestPersonalRegistration(t *testing.T) {
	srv, ts, links := newTestServer(t)
	w, err := wizard.New(schema.Personal())
	if err != nil {
		t.Fatalf("new wizard: %v", err)
	}
	for name, value := range map[string]string{"name": "Budi", "email": "budi@x.com", "phone": "0812", "idNumber": "3201"} {
		w.UpdateField(name, value)
	}
	w.Advance()
	w.UpdateField("businessName", "Warung Budi")
	w.UpdateField("businessType", "shipper")
	w.UpdateField("businessAddress", "Bandung")
	w.Advance()
	w.UpdateFile("ktp", pdf("ktp"))
	w.UpdateFile("npwp", pdf("npwp"))
	out, err := w.Submit(context.Background(), api.NewClient(ts.URL))
	if err != nil || !out.Success {
		t.Fatalf("submit personal: %+v %v", out, err)
	}
	if regs := srv.Store().List(); regs[0].SchemaID != schema.PersonalID {
		t.Fatalf("expected personal schema, got %s", regs[0].SchemaID)
	}
	token, _ := links.last(t)
	claim, err := approval.DecodeClaim(token)
	if err != nil || claim.Name != "Budi" || claim.BusinessName != "Warung Budi" {
		t.Fatalf("unexpected claim %+v (%v)", claim, err)
	}
}

func TestDecisionRejectsForgedToken(t *testing.T) {
	_, ts, links := newTestServer(t)
	ctx := context.Background()
	client := api.NewClient(ts.URL)
	if _, err := completedBusinessWizard(t, "forge@x.com").Submit(ctx, client); err != nil {
		t.Fatalf("submit: %v", err)
	}
	token, _ := links.last(t)
	other := NewSigner("other-secret", time.Hour)
	reg := Registration{ID: "whatever", Fields: map[string]string{}}
	forged, err := other.Sign(reg, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = client.Decide(ctx, forged, api.Approve())
	if api.MessageFor(err) != "Invalid or expired token" {
		t.Fatalf("expected forged token to fail, got %v", err)
	}

	expired := NewSigner("test-secret", time.Minute)
	stale, _ := expired.Sign(reg, time.Now().Add(-time.Hour))
	_, err = client.Decide(ctx, stale, api.Approve())
	if api.MessageFor(err) != "Invalid or expired token" {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	if _, err := client.Decide(ctx, token, api.Approve()); err != nil {
		t.Fatalf("genuine token should succeed: %v", err)
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	srv := NewServer(settings)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("expected ready, got %s", srv.Status())
	}
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.BaseURL() + api.RegisterPath)
	if err != nil {
		t.Fatalf("register GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestDisabledServerDoesNotStart(t *testing.T) {
	settings := testSettings()
	settings.Enabled = false
	if err := NewServer(settings).Start(context.Background()); err == nil {
		t.Fatalf("expected disabled server to refuse start")
	}
}

package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/config"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/sandbox"
	"github.com/kingrea/onboard/internal/schema"
	"github.com/kingrea/onboard/internal/wizard"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSchemasListsBuiltinsAndCustomForms(t *testing.T) {
	dir := t.TempDir()
	if err := config.InitOnboardDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	custom := "id: supplier\nversion: 1.0.0\nname: Supplier onboarding\nsteps:\n  - fields:\n      - name: contactName\n"
	if err := os.WriteFile(filepath.Join(dir, config.OnboardDir, "schemas", "supplier.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	out, err := run(t, "--dir", dir, "schemas")
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	for _, want := range []string{"business", "personal", "supplier", "Supplier onboarding"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	if _, err := run(t, "--dir", dir, "schemas", "--set-default", "Personal"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.DefaultSchema() != schema.PersonalID {
		t.Fatalf("expected personal default, got %s", cfg.DefaultSchema())
	}

	if _, err := run(t, "--dir", dir, "schemas", "--set-default", "missing"); err == nil {
		t.Fatalf("expected unknown schema to fail")
	}
}

func TestApproveAndRejectWithoutTUI(t *testing.T) {
	var (
		mu    sync.Mutex
		links []string
	)
	srv := sandbox.NewServer(sandbox.Settings{
		Enabled:      true,
		Secret:       "cli-secret",
		MaxBodyBytes: 1 << 20,
		TokenTTL:     time.Hour,
	}, sandbox.WithApprovalHook(func(_ sandbox.Registration, _ string, link string) {
		mu.Lock()
		defer mu.Unlock()
		links = append(links, link)
	}))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	dir := t.TempDir()

	submit := func(email string) string {
		t.Helper()
		w, err := wizard.New(schema.Business())
		if err != nil {
			t.Fatalf("wizard: %v", err)
		}
		for name, value := range map[string]string{"businessName": "Acme", "businessManager": "Jane", "email": email, "businessAddress": "1 Main St"} {
			w.UpdateField(name, value)
		}
		w.Advance()
		for _, name := range []string{"bankName", "bankLocation", "bankNumber", "bankAccount"} {
			w.UpdateField(name, "x")
		}
		w.Advance()
		for _, name := range []string{"npwp", "sipNib", "ktp", "aktaPendirian", "aktaPengesahanPendirian"} {
			w.UpdateFile(name, &documents.Attachment{Filename: name + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
		}
		out, err := w.Submit(context.Background(), api.NewClient(ts.URL))
		if err != nil || !out.Success {
			t.Fatalf("submit: %+v %v", out, err)
		}
		mu.Lock()
		defer mu.Unlock()
		return links[len(links)-1]
	}

	link := submit("jane@x.com")
	out, err := run(t, "--dir", dir, "--api", ts.URL, "approve", "--yes", link)
	if err != nil {
		t.Fatalf("approve: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Jane") || !strings.Contains(out, "Registration approved") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, "--dir", dir, "--api", ts.URL, "approve", "--yes", link)
	if err == nil || !strings.Contains(err.Error(), "Registration already approved") {
		t.Fatalf("expected conflict, got %v\n%s", err, out)
	}

	link = submit("other@x.com")
	if _, err := run(t, "--dir", dir, "--api", ts.URL, "approve", "--reject", " ", link); err == nil {
		t.Fatalf("blank reason must be refused")
	}
	if _, err := run(t, "--dir", dir, "--api", ts.URL, "approve", "--reject", "Missing NPWP", link); err != nil {
		t.Fatalf("reject: %v", err)
	}
	regs := srv.Store().List()
	if regs[1].Status != sandbox.StatusRejected || regs[1].RejectReason != "Missing NPWP" {
		t.Fatalf("unexpected registration %+v", regs[1])
	}
}

func TestTokenArg(t *testing.T) {
	cases := map[string]string{
		"abc.def.ghi":                     "abc.def.ghi",
		" /approval/abc.def.ghi ":         "abc.def.ghi",
		"https://x.test/approval/abc.d.e": "abc.d.e",
		"/success":                        "",
	}
	for in, want := range cases {
		if got := tokenArg(in); got != want {
			t.Fatalf("tokenArg(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenLogbookReportsFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer
	lb := openLogbook(&config.Config{OnboardProjectDir: blocker}, &stderr)
	if lb != nil {
		t.Fatalf("expected no logbook when the log dir cannot be created")
	}
	if !strings.Contains(stderr.String(), "warning: activity log disabled") {
		t.Fatalf("expected warning on stderr, got %q", stderr.String())
	}

	stderr.Reset()
	cfg := &config.Config{OnboardProjectDir: filepath.Join(t.TempDir(), config.OnboardDir)}
	if lb := openLogbook(cfg, &stderr); lb == nil || stderr.Len() != 0 {
		t.Fatalf("expected logbook without warnings, got %v %q", lb, stderr.String())
	}
}

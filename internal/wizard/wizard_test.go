package wizard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/schema"
)

type fakeSubmitter struct {
	calls    int
	payloads []*api.Payload
	resp     api.Response
	err      error
}

func (f *fakeSubmitter) Register(_ context.Context, p *api.Payload) (api.Response, error) {
	f.calls++
	f.payloads = append(f.payloads, p)
	return f.resp, f.err
}

func pdf(name string) *documents.Attachment {
	return &documents.Attachment{Filename: name + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
}

func newBusiness(t *testing.T) *Wizard {
	t.Helper()
	w, err := New(schema.Business())
	require.NoError(t, err)
	return w
}

func fillIdentity(w *Wizard) {
	w.UpdateField("businessName", "Acme")
	w.UpdateField("businessManager", "Jane Doe")
	w.UpdateField("email", "jane@acme.test")
	w.UpdateField("businessAddress", "1 Main St")
}

func fillBanking(w *Wizard) {
	w.UpdateField("bankName", "BCA")
	w.UpdateField("bankLocation", "Jakarta")
	w.UpdateField("bankNumber", "123")
	w.UpdateField("bankAccount", "Acme PT")
}

func fillDocuments(w *Wizard) {
	for _, name := range []string{"npwp", "sipNib", "ktp", "aktaPendirian", "aktaPengesahanPendirian"} {
		w.UpdateFile(name, pdf(name))
	}
}

func readyToSubmit(t *testing.T) *Wizard {
	t.Helper()
	w := newBusiness(t)
	fillIdentity(w)
	require.True(t, w.Advance())
	fillBanking(w)
	require.True(t, w.Advance())
	fillDocuments(w)
	return w
}

func TestAdvanceThenBlockedOnEmptyBanking(t *testing.T) {
	w := newBusiness(t)
	fillIdentity(w)

	require.True(t, w.Advance())
	assert.Equal(t, 2, w.Step())

	assert.False(t, w.Advance())
	assert.Equal(t, 2, w.Step())
	assert.Equal(t, map[string]string{
		"bankName":     MsgRequired,
		"bankLocation": MsgRequired,
		"bankNumber":   MsgRequired,
		"bankAccount":  MsgRequired,
	}, w.Errors())
}

func TestAdvanceReportsOnlyMissingRequiredFields(t *testing.T) {
	w := readyToSubmit(t)
	w.Retreat()
	w.Retreat()
	w.UpdateField("email", "")
	w.UpdateField("businessAddress", "")

	assert.False(t, w.Advance())
	assert.Equal(t, 1, w.Step())
	assert.Equal(t, map[string]string{"email": MsgRequired, "businessAddress": MsgRequired}, w.Errors())
}

func TestOptionalDocumentsNeverProduceErrors(t *testing.T) {
	w := newBusiness(t)
	ok := w.ValidateStep([]string{"companyLogo", "nidTdp", "othersFile", "npwp"})
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"npwp": MsgRequired}, w.Errors())
}

func TestValidateStepReplacesErrorsWholesale(t *testing.T) {
	w := newBusiness(t)
	assert.False(t, w.ValidateStep([]string{"bankName"}))
	assert.False(t, w.ValidateStep([]string{"email"}))
	assert.Equal(t, map[string]string{"email": MsgRequired}, w.Errors())
	assert.True(t, w.ValidateStep(nil))
	assert.Empty(t, w.Errors())
}

func TestUpdateFieldClearsError(t *testing.T) {
	w := newBusiness(t)
	w.Advance()
	assert.Equal(t, MsgRequired, w.Error("businessName"))
	w.UpdateField("businessName", "Acme")
	assert.Empty(t, w.Error("businessName"))
	assert.Equal(t, MsgRequired, w.Error("email"))
}

func TestSuccessfulAdvanceClearsStepErrors(t *testing.T) {
	w := newBusiness(t)
	assert.False(t, w.Advance())
	fillIdentity(w)
	assert.True(t, w.Advance())
	assert.Empty(t, w.Errors())
}

func TestRetreatIsUnguardedWithFloor(t *testing.T) {
	w := readyToSubmit(t)
	w.UpdateField("bankName", "")
	w.Retreat()
	assert.Equal(t, 2, w.Step())
	w.Retreat()
	assert.Equal(t, 1, w.Step())
	w.Retreat()
	assert.Equal(t, 1, w.Step())
}

func TestAdvanceStopsAtLastStep(t *testing.T) {
	w := readyToSubmit(t)
	assert.False(t, w.Advance())
	assert.Equal(t, 3, w.Step())
}

func TestUpdateFileRejectsUnsupportedTypes(t *testing.T) {
	w := newBusiness(t)
	first := pdf("ktp")
	require.True(t, w.UpdateFile("ktp", first))

	ok := w.UpdateFile("ktp", &documents.Attachment{Filename: "ktp.txt", ContentType: "text/plain"})
	assert.False(t, ok)
	assert.Same(t, first, w.Value("ktp").File)
	assert.Equal(t, MsgFileType, w.Error("ktp"))

	ok = w.UpdateFile("npwp", &documents.Attachment{Filename: "a.zip", ContentType: "application/zip"})
	assert.False(t, ok)
	assert.False(t, w.Value("npwp").Present())

	img := &documents.Attachment{Filename: "ktp.jpg", ContentType: "image/jpeg"}
	assert.True(t, w.UpdateFile("ktp", img))
	assert.Same(t, img, w.Value("ktp").File)
	assert.Empty(t, w.Error("ktp"))
}

func TestSubmitIssuesExactlyOneCallAndSucceeds(t *testing.T) {
	w := readyToSubmit(t)
	sub := &fakeSubmitter{resp: api.Response{Status: http.StatusCreated, Message: "Registered"}}

	out, err := w.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "Registered", out.Message)
	assert.Equal(t, 1, sub.calls)
	assert.True(t, w.Submitted())
	assert.False(t, w.Submitting())

	parts := sub.payloads[0].Parts()
	require.Len(t, parts, 16)
	assert.Equal(t, "businessName", parts[0].Name)
	assert.Equal(t, "Acme", parts[0].Value)
	for _, p := range parts {
		if p.Name == "companyLogo" {
			assert.Nil(t, p.File)
			assert.Equal(t, "", p.Value)
		}
		if p.Name == "npwp" {
			require.NotNil(t, p.File)
			assert.Equal(t, "npwp.pdf", p.File.Filename)
		}
	}
}

func TestSubmitFailureKeepsState(t *testing.T) {
	w := readyToSubmit(t)
	sub := &fakeSubmitter{err: &api.APIError{Status: http.StatusBadRequest, Message: "NPWP unreadable"}}

	out, err := w.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "NPWP unreadable", out.Message)
	assert.Equal(t, 3, w.Step())
	assert.Equal(t, "Acme", w.Value("businessName").Text)
	assert.False(t, w.Submitting())
	assert.False(t, w.Submitted())
	assert.Equal(t, 1, sub.calls)
}

func TestSubmitFallbackMessage(t *testing.T) {
	w := readyToSubmit(t)
	out, err := w.Submit(context.Background(), &fakeSubmitter{err: errors.New("dial tcp: refused")})
	require.NoError(t, err)
	assert.Equal(t, api.FallbackMessage, out.Message)
}

func TestSubmitMissingFinalDocumentsSendsNothing(t *testing.T) {
	w := readyToSubmit(t)
	w.UpdateFile("ktp", nil)
	sub := &fakeSubmitter{}

	_, err := w.Submit(context.Background(), sub)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Step)
	assert.Equal(t, map[string]string{"ktp": MsgRequired}, w.Errors())
	assert.Zero(t, sub.calls)
}

func TestSubmitRevalidatesEarlierSteps(t *testing.T) {
	w := readyToSubmit(t)
	w.UpdateField("bankNumber", "")
	sub := &fakeSubmitter{}

	_, err := w.Submit(context.Background(), sub)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Step)
	assert.Equal(t, 3, w.Step())
	assert.Equal(t, map[string]string{"bankNumber": MsgRequired}, w.Errors())
	assert.Zero(t, sub.calls)
}

func TestSubmitKeepsStepWhenFirstStepIsIncomplete(t *testing.T) {
	w := readyToSubmit(t)
	w.UpdateField("businessName", "")

	_, err := w.Prepare()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Step)
	assert.Equal(t, 3, w.Step())
	assert.False(t, w.Submitting())

	w.Retreat()
	assert.Equal(t, 2, w.Step())
	w.Retreat()
	assert.Equal(t, MsgRequired, w.Error("businessName"))
}

func TestSubmitGuards(t *testing.T) {
	w := newBusiness(t)
	_, err := w.Prepare()
	assert.ErrorIs(t, err, ErrNotLastStep)

	w = readyToSubmit(t)
	_, err = w.Prepare()
	require.NoError(t, err)
	assert.True(t, w.Submitting())
	assert.True(t, w.Snapshot().Submitting)
	_, err = w.Prepare()
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestSubmitAgainstServer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Acme", r.FormValue("businessName"))
		assert.Len(t, r.MultipartForm.File, 5)
		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write([]byte(`{"message":"Registration received"}`))
	}))
	defer srv.Close()

	w := readyToSubmit(t)
	out, err := w.Submit(context.Background(), api.NewClient(srv.URL))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "Registration received", out.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSnapshot(t *testing.T) {
	w := newBusiness(t)
	fillIdentity(w)
	w.Advance()
	w.Advance()
	snap := w.Snapshot()
	assert.Equal(t, "business", snap.SchemaID)
	assert.Equal(t, 2, snap.Step)
	assert.Equal(t, "Banking information", snap.StepTitle)
	assert.Len(t, snap.Fields, 4)
	assert.Equal(t, "Acme", snap.Values["businessName"])
	assert.Len(t, snap.Errors, 4)
	assert.InDelta(t, 2.0/3.0, snap.Progress(), 0.001)

	snap.Errors["x"] = "mutated"
	assert.Empty(t, w.Error("x"))
}

func TestPersonalSchemaUsesSameControlPattern(t *testing.T) {
	w, err := New(schema.Personal())
	require.NoError(t, err)
	assert.False(t, w.Advance())
	assert.Len(t, w.Errors(), 4)
	for _, name := range []string{"name", "email", "phone", "idNumber"} {
		w.UpdateField(name, "x")
	}
	assert.True(t, w.Advance())
	w.UpdateField("businessName", "Warung")
	w.UpdateField("businessType", "shipper")
	w.UpdateField("businessAddress", "Bandung")
	assert.True(t, w.Advance())
	assert.True(t, w.IsLastStep())
	assert.False(t, w.ValidateStep([]string{"ktp", "npwp", "othersFile"}))
	assert.Len(t, w.Errors(), 2)
}

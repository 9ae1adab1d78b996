package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestRecordSignIn(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn("success")
	c.RecordSignIn("failure")
	c.RecordSignIn("failure")

	if got := counterValue(t, reg, "quicknotes_sign_in_total"); got != 3 {
		t.Errorf("sign_in_total = %v, want 3", got)
	}
}

func TestRecordGuardRedirect(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardRedirect("login")
	c.RecordGuardRedirect("landing")

	if got := counterValue(t, reg, "quicknotes_guard_redirect_total"); got != 2 {
		t.Errorf("guard_redirect_total = %v, want 2", got)
	}
}

func TestRecordNoteCreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNoteCreated()
	c.RecordNoteCreated()

	if got := counterValue(t, reg, "quicknotes_note_created_total"); got != 2 {
		t.Errorf("note_created_total = %v, want 2", got)
	}
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn("success")
	c.RecordSignUp()
	c.RecordNoteCreated()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body, _ := io.ReadAll(rec.Result().Body)
	for _, name := range []string{
		"quicknotes_sign_in_total",
		"quicknotes_sign_up_total",
		"quicknotes_note_created_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response body does not contain %q", name)
		}
	}
}

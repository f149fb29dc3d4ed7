package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estatecrm/internal/core"
)

func triggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("HX-Trigger header not set")
	}
	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("HX-Trigger is not a JSON object: %v", err)
	}
	return events
}

func TestHTMXResponseBuilder_Fragment(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Fragment([]byte("<p>ok</p>")).Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger should be absent without events")
	}
}

func TestHTMXResponseBuilder_LoanCreated(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerLoanCreated("loan_42").
		TriggerFormReset().
		Notify(NotificationSuccess, "Loan created").
		Write(w)

	events := triggers(t, w)
	if string(events[eventLoanCreated]) != `{"id":"loan_42"}` {
		t.Errorf("loan:created = %s", events[eventLoanCreated])
	}
	if _, ok := events[eventFormReset]; !ok {
		t.Errorf("missing form:reset in %v", events)
	}

	var toast struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal(events[eventNotification], &toast); err != nil {
		t.Fatal(err)
	}
	if toast.Type != "success" || toast.Message != "Loan created" || toast.Duration != 3000 {
		t.Errorf("notification = %+v", toast)
	}
}

func TestHTMXResponseBuilder_TransactionRecorded(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerTransactionRecorded("txn_7").
		TriggerDashboardRefresh().
		Write(w)

	events := triggers(t, w)
	if string(events[eventTransactionRecorded]) != `{"id":"txn_7"}` {
		t.Errorf("transaction:recorded = %s", events[eventTransactionRecorded])
	}
	if _, ok := events[eventDashboardRefresh]; !ok {
		t.Errorf("missing dashboard:refresh in %v", events)
	}
}

func TestHTMXResponseBuilder_LaterTriggerWins(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Notify(NotificationSuccess, "first").
		Notify(NotificationError, "second").
		Write(w)

	if got := string(triggers(t, w)[eventNotification]); !strings.Contains(got, `"second"`) || strings.Contains(got, `"first"`) {
		t.Errorf("notification = %s", got)
	}
}

func TestHTMXResponseBuilder_HeaderAndStatus(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("HX-Retarget", "#loan-form").
		Status(http.StatusCreated).
		Write(w)

	if w.Header().Get("HX-Retarget") != "#loan-form" {
		t.Errorf("HX-Retarget header not set")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestHTMXResponseBuilder_MessageEscapes(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Message("success", "Recorded %s of %s", core.TransactionKind("<b>fee</b>"), "1,000.00").
		Write(w)

	want := `<div class="success">Recorded &lt;b&gt;fee&lt;/b&gt; of 1,000.00</div>`
	if w.Body.String() != want {
		t.Errorf("Body = %q, want %q", w.Body.String(), want)
	}
}

func TestErrorFragment(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusBadRequest, "Malformed request"},
		{http.StatusUnprocessableEntity, "invalid rate: annual rate -1 must not be negative"},
		{http.StatusInternalServerError, "Something went wrong, please retry"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFragment(tt.status, tt.message).Write(w)

			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			if want := `<div class="error">` + tt.message + `</div>`; w.Body.String() != want {
				t.Errorf("Body = %q, want %q", w.Body.String(), want)
			}
			if got := string(triggers(t, w)[eventNotification]); !strings.Contains(got, `"type":"error"`) {
				t.Errorf("notification = %s", got)
			}
		})
	}
}

func TestErrorFragment_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorFragment(http.StatusBadRequest, "<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error fragment did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error fragment did not properly escape HTML entities")
	}
}

func TestLoginRedirect(t *testing.T) {
	w := httptest.NewRecorder()

	LoginRedirect().Write(w)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := w.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q, want %q", got, "/login")
	}
}

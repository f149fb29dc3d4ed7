package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
)

// htmx events raised by the CRM pages.
const (
	eventLoanCreated         = "loan:created"
	eventTransactionRecorded = "transaction:recorded"
	eventFormReset           = "form:reset"
	eventDashboardRefresh    = "dashboard:refresh"
	eventNotification        = "show-notification"
)

// NotificationType selects the style of a toast.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

var notificationDuration = map[NotificationType]int{
	NotificationSuccess: 3000,
	NotificationError:   5000,
}

// HTMXResponseBuilder assembles an htmx reply: an HTML fragment plus the
// events listed in the HX-Trigger header.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    http.Header
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(http.Header),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds an event; a later trigger with the same name replaces it.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerLoanCreated(id string) *HTMXResponseBuilder {
	return b.Trigger(eventLoanCreated, map[string]string{"id": id})
}

func (b *HTMXResponseBuilder) TriggerTransactionRecorded(id string) *HTMXResponseBuilder {
	return b.Trigger(eventTransactionRecorded, map[string]string{"id": id})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(eventFormReset, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerDashboardRefresh() *HTMXResponseBuilder {
	return b.Trigger(eventDashboardRefresh, struct{}{})
}

// Notify shows a toast for the type's default duration.
func (b *HTMXResponseBuilder) Notify(kind NotificationType, message string) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": notificationDuration[kind],
	})
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers.Set(name, value)
	return b
}

// Fragment sets an already rendered HTML body.
func (b *HTMXResponseBuilder) Fragment(html []byte) *HTMXResponseBuilder {
	b.headers.Set("Content-Type", "text/html; charset=utf-8")
	b.body = html
	return b
}

// Message renders a one-line fragment of the given CSS class. Arguments are
// HTML-escaped.
func (b *HTMXResponseBuilder) Message(class, format string, args ...any) *HTMXResponseBuilder {
	text := template.HTMLEscapeString(fmt.Sprintf(format, args...))
	return b.Fragment([]byte(`<div class="` + class + `">` + text + `</div>`))
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, values := range b.headers {
		w.Header()[name] = values
	}
	if len(b.triggers) > 0 {
		if events, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(events))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorFragment answers an htmx request with an error message and toast.
func ErrorFragment(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		Notify(NotificationError, message).
		Message("error", "%s", message)
}

// LoginRedirect sends htmx to the login page.
func LoginRedirect() *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusUnauthorized).
		Header("HX-Redirect", "/login")
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records application-level counters and exposes them for
// Prometheus scraping.
type Collector struct {
	signIn        *prometheus.CounterVec
	signUp        prometheus.Counter
	guardRedirect *prometheus.CounterVec
	noteCreated   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quicknotes_sign_in_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		signUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quicknotes_sign_up_total",
			Help: "Accounts created.",
		}),
		guardRedirect: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quicknotes_guard_redirect_total",
			Help: "Route guard redirects by destination.",
		}, []string{"reason"}),
		noteCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quicknotes_note_created_total",
			Help: "Notes created.",
		}),
	}

	reg.MustRegister(
		c.signIn,
		c.signUp,
		c.guardRedirect,
		c.noteCreated,
	)

	return c
}

// RecordSignIn records a sign-in attempt. result is "success" or "failure".
func (c *Collector) RecordSignIn(result string) {
	c.signIn.WithLabelValues(result).Inc()
}

// RecordSignUp records a created account.
func (c *Collector) RecordSignUp() {
	c.signUp.Inc()
}

// RecordGuardRedirect records a route guard redirect decision.
func (c *Collector) RecordGuardRedirect(reason string) {
	c.guardRedirect.WithLabelValues(reason).Inc()
}

// RecordNoteCreated records a saved note.
func (c *Collector) RecordNoteCreated() {
	c.noteCreated.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

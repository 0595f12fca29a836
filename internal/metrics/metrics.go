package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Fetch outcomes. Failure outcomes match the checker's failure kinds.
const (
	FetchSuccess   = "success"
	FetchNetwork   = "network"
	FetchMalformed = "malformed"
	FetchUpstream  = "upstream"
)

// Metrics holds the checker's counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	CacheLookups *prometheus.CounterVec
	Fetches      *prometheus.CounterVec
	CacheWrites  *prometheus.CounterVec
}

// New creates the counters and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themecheck",
			Name:      "cache_lookups_total",
			Help:      "Check cache lookups by result.",
		}, []string{"result"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themecheck",
			Name:      "fetches_total",
			Help:      "Theme check API requests by outcome.",
		}, []string{"outcome"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themecheck",
			Name:      "cache_writes_total",
			Help:      "Check cache writes by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheLookups, m.Fetches, m.CacheWrites)
	}
	return m
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Write(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CacheWrites.WithLabelValues(result).Inc()
}

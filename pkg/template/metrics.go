package template

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics counts template construction activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Counters
	rulesAdded         prometheus.Counter
	defaultsDeclared   prometheus.Counter
	templatesFrozen    prometheus.Counter
	modulesBuilt       *prometheus.CounterVec
	constructionErrors *prometheus.CounterVec

	// Sizes
	templateSize prometheus.Summary
}

func NewMetrics() *Metrics {
	m := &Metrics{
		rulesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rules_added_total",
				Help: "number of rules and facts appended to templates",
			},
		),
		defaultsDeclared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "defaults_declared_total",
				Help: "number of relation-level metadata declarations",
			},
		),
		templatesFrozen: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "templates_frozen_total",
				Help: "number of templates handed to an engine",
			},
		),
		modulesBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modules_built_total",
				Help: "number of module layers expanded into templates, by layer kind",
			},
			[]string{"kind"},
		),
		constructionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "construction_errors_total",
				Help: "number of rejected template mutations, by error kind",
			},
			[]string{"kind"},
		),
		templateSize: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "frozen_template_statements",
				Help: "number of statements in templates at freeze time",
			},
		),
	}
	m.Registry = prometheus.NewPedanticRegistry()
	reg := m.Registry

	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	reg.MustRegister(m.rulesAdded)
	reg.MustRegister(m.defaultsDeclared)
	reg.MustRegister(m.templatesFrozen)
	reg.MustRegister(m.modulesBuilt)
	reg.MustRegister(m.constructionErrors)
	reg.MustRegister(m.templateSize)
	return m
}

func (m *Metrics) ruleAdded() {
	if m == nil {
		return
	}
	m.rulesAdded.Inc()
}

func (m *Metrics) defaultDeclared() {
	if m == nil {
		return
	}
	m.defaultsDeclared.Inc()
}

func (m *Metrics) frozen(size int) {
	if m == nil {
		return
	}
	m.templatesFrozen.Inc()
	m.templateSize.Observe(float64(size))
}

// ModuleBuilt records one expanded layer of the given kind.
func (m *Metrics) ModuleBuilt(kind string) {
	if m == nil {
		return
	}
	m.modulesBuilt.WithLabelValues(kind).Inc()
}

// ConstructionError records a rejected mutation.
func (m *Metrics) ConstructionError(err error) {
	if m == nil || err == nil {
		return
	}
	m.constructionErrors.WithLabelValues(ErrorKind(err)).Inc()
}

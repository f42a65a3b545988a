package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	// Counters
	nextConnectionID prometheus.CounterFunc
	statements       *prometheus.CounterVec

	// Gauges
	openConnections prometheus.GaugeFunc

	// Latency
	statementLatency prometheus.Summary
}

func newMetrics(s *Server) *metrics {
	m := &metrics{
		nextConnectionID: prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "next_connection_id",
				Help: "number of connections to this server over its lifetime",
			},
			func() float64 {
				return float64(s.connectionsOpened())
			},
		),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statements_total",
				Help: "number of statements received, by outcome",
			},
			[]string{"outcome"},
		),
		openConnections: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "open_connections",
				Help: "number of connections currently open",
			},
			func() float64 {
				return float64(s.numConnections())
			},
		),
		statementLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name:       "statement_latency_seconds",
				Help:       "time to execute one statement",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
		),
	}

	reg := s.metrics.Registry
	reg.MustRegister(m.nextConnectionID)
	reg.MustRegister(m.statements)
	reg.MustRegister(m.openConnections)
	reg.MustRegister(m.statementLatency)
	return m
}

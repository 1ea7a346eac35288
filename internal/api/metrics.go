package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectRuns counts drift-detection runs by outcome.
	DetectRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldbridge_detect_runs_total",
		Help: "Drift detection runs by outcome (ok, source_unavailable, error)",
	}, []string{"outcome"})

	// FieldsProposed counts new inactive mappings inserted by detection.
	FieldsProposed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldbridge_fields_proposed_total",
		Help: "New field mappings proposed by drift detection",
	})

	// RowsImported counts rows successfully written during imports.
	RowsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldbridge_rows_imported_total",
		Help: "Rows successfully written to the destination store",
	})

	// RowErrors counts per-row write failures and per-field degradations.
	RowErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldbridge_row_errors_total",
		Help: "Row write failures and field transform degradations during imports",
	})
)

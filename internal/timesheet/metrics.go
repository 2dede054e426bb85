package timesheet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_entries_created_total",
		Help: "Work entries persisted.",
	})
	photoUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_photo_upload_failures_total",
		Help: "Photo uploads skipped during entry creation.",
	})
)

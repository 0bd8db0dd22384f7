// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_attendance_recorded_total",
		Help: "Attendance records created, by presence.",
	}, []string{"present"})

	AttendanceDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studio_attendance_deleted_total",
		Help: "Attendance records deleted.",
	})

	CounterDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studio_attendance_counter_drift_total",
		Help: "Remaining-class adjustments that failed after the attendance write.",
	})

	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_counter_repairs_total",
		Help: "Counter repair attempts processed by the worker, by result.",
	}, []string{"result"})

	ArtworkFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_artwork_files_total",
		Help: "Artwork files by pipeline stage and result.",
	}, []string{"stage", "result"})

	UploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "studio_artwork_upload_seconds",
		Help:    "Time to upload and record one artwork.",
		Buckets: prometheus.DefBuckets,
	})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_auth_events_total",
		Help: "Sign-in and sign-out transitions, by kind and role.",
	}, []string{"kind", "role"})

	SignInFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_auth_signin_failures_total",
		Help: "Failed sign-ins by auth error code.",
	}, []string{"code"})

	RosterDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studio_roster_stale_discards_total",
		Help: "Roster rebuilds thrown away because a newer write arrived.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studio_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)

// Result maps an error to the "ok"/"error" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

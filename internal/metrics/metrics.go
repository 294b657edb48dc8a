// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 9f8e7d6c-5b4a-3210-9fed-cba876543210

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	stageStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iopenpod",
		Name:      "stages_started_total",
		Help:      "Total number of sync stages started by stage name",
	}, []string{"stage"})
	stageCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iopenpod",
		Name:      "stages_completed_total",
		Help:      "Total number of sync stages successfully completed by stage name",
	}, []string{"stage"})
	stageFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iopenpod",
		Name:      "stages_failed_total",
		Help:      "Total number of sync stages failed by stage name",
	}, []string{"stage"})
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "iopenpod",
		Name:      "stage_duration_seconds",
		Help:      "Histogram of sync stage durations in seconds by stage name",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10),
	}, []string{"stage"})
	actionsPlanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iopenpod",
		Name:      "actions_planned_total",
		Help:      "Total number of sync actions planned by kind",
	}, []string{"kind"})
	actionsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iopenpod",
		Name:      "actions_skipped_total",
		Help:      "Total number of sync actions skipped after per-file failures by kind",
	}, []string{"kind"})

	tracksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iopenpod",
		Name:      "device_tracks_total",
		Help:      "Number of tracks on the device after the last sync",
	})
	bytesToAddGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iopenpod",
		Name:      "plan_bytes_to_add",
		Help:      "Bytes the last plan would add to the device",
	})
	bytesToRemoveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iopenpod",
		Name:      "plan_bytes_to_remove",
		Help:      "Bytes the last plan would remove from the device",
	})
	netChangeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iopenpod",
		Name:      "plan_net_change_bytes",
		Help:      "Net storage change of the last plan",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(stageStarted, stageCompleted, stageFailed, stageDuration,
			actionsPlanned, actionsSkipped,
			tracksGauge, bytesToAddGauge, bytesToRemoveGauge, netChangeGauge)
	})
}

// Stage lifecycle helpers
func IncStageStarted(stage string)   { stageStarted.WithLabelValues(stage).Inc() }
func IncStageCompleted(stage string) { stageCompleted.WithLabelValues(stage).Inc() }
func IncStageFailed(stage string)    { stageFailed.WithLabelValues(stage).Inc() }
func ObserveStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Action counters
func AddActionsPlanned(kind string, n int) {
	actionsPlanned.WithLabelValues(kind).Add(float64(n))
}
func IncActionSkipped(kind string) { actionsSkipped.WithLabelValues(kind).Inc() }

// Gauges
func SetDeviceTracks(n int) { tracksGauge.Set(float64(n)) }
func SetPlanStorage(bytesToAdd, bytesToRemove, netChange int64) {
	bytesToAddGauge.Set(float64(bytesToAdd))
	bytesToRemoveGauge.Set(float64(bytesToRemove))
	netChangeGauge.Set(float64(netChange))
}

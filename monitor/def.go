package monitor

import (
	iface "PostureServer/interface"
	"PostureServer/logger"
	"PostureServer/posture"
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	registry = prometheus.NewRegistry()

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	FramesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_frames_captured_total",
		Help: "Frames stored into the shared frame slot",
	})
	CaptureReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_capture_read_failures_total",
		Help: "Failed frame reads skipped by the capture task",
	})
	ClassificationPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_classification_passes_total",
		Help: "Availability signals consumed by the classifier",
	})
	ClassificationSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_classification_skipped_total",
		Help: "Classifier passes skipped because no frame had been captured",
	})
	DetectorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_detector_errors_total",
		Help: "Landmark detector calls that failed or panicked",
	})
	DetectorSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "posture_detector_seconds",
		Help:    "Landmark detector latency",
		Buckets: prometheus.ExponentialBuckets(0.002, 2, 10),
	})
	LabelsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posture_labels_total",
		Help: "Labels published to the posture state",
	}, []string{"label"})
	StatusLinesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posture_status_lines_sent_total",
		Help: "Lines written to the status client",
	})
	FrameSignalPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posture_frame_signal_pending",
		Help: "Capture events not yet consumed by the classifier",
	})
	taskUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posture_task_up",
		Help: "1 while a pipeline task is running",
	}, []string{"task"})
)

func init() {
	registry.MustRegister(memUsage, cpuUsage, FramesCaptured, CaptureReadFailures, ClassificationPasses,
		ClassificationSkipped, DetectorErrors, DetectorSeconds, LabelsTotal, StatusLinesSent, FrameSignalPending, taskUp)
	for _, l := range posture.Labels() {
		LabelsTotal.WithLabelValues(l.Name())
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// TaskGauge exports task states as posture_task_up.
type TaskGauge struct{}

func (TaskGauge) ObserveTask(task string, state iface.TaskState) {
	if state == iface.TaskRunning {
		taskUp.WithLabelValues(task).Set(1)
		return
	}
	taskUp.WithLabelValues(task).Set(0)
}

func CheckProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon samples process memory and CPU every 500ms until ctx ends.
func StartMon(ctx context.Context) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Error("process monitor unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CheckProcessInfo(p)
		}
	}
}

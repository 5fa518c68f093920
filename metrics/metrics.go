package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/midbel/angle/xslt"
)

const namespace = "angle"

const (
	StatusOk    = "ok"
	StatusError = "error"
)

// Collector counts the instructions executed and the transformations run. It
// is a Tracer and can be given to a transformation with xslt.WithTracer.
type Collector struct {
	instructions *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	transforms   *prometheus.CounterVec
}

func New() *Collector {
	c := Collector{
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Total number of instructions executed",
			},
			[]string{"instruction"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instruction_errors_total",
				Help:      "Total number of instructions that failed",
			},
			[]string{"instruction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Duration of the transformations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		transforms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transforms_total",
				Help:      "Total number of transformations",
			},
			[]string{"stylesheet", "status"},
		),
	}
	return &c
}

// Register registers the metrics of c to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	list := []prometheus.Collector{
		c.instructions,
		c.failures,
		c.duration,
		c.transforms,
	}
	for _, m := range list {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Enter(_ xslt.Context, i xslt.Instruction) {
	c.instructions.WithLabelValues(i.Name()).Inc()
}

func (c *Collector) Leave(_ xslt.Context, _ xslt.Instruction) {}

func (c *Collector) Error(_ xslt.Context, i xslt.Instruction, _ error) {
	c.failures.WithLabelValues(i.Name()).Inc()
}

// ObserveTransform records a transformation of stylesheet that started at
// start and ended with err.
func (c *Collector) ObserveTransform(stylesheet string, start time.Time, err error) {
	status := StatusOk
	if err != nil {
		status = StatusError
	}
	c.duration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	c.transforms.WithLabelValues(stylesheet, status).Inc()
}

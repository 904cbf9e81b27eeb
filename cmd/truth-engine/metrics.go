package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/types"
	"github.com/venkatnarayana7/Python-Debugger/worker"
)

const (
	metricsNamespace = "truth_engine"
)

var (
	// 1ms -> 60s
	timeBuckets = []float64{
		0.001, 0.005, 0.010, 0.025, 0.050, 0.1, 0.2, 0.4, 0.6, 0.8,
		1.0, 1.5, 2, 5, 10, 20, 30, 60,
	}

	metricsSummaryQuantile = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

	candidateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "candidate_total",
		Help:      "Number of candidate executions by outcome status",
	}, []string{"status"})

	candidateTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "candidate_time_seconds",
		Help:      "Histogram for the candidate running time",
		Buckets:   timeBuckets,
	}, []string{"status"})

	requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "verification_total",
		Help:      "Number of verifications by status and reason",
	}, []string{"status", "reason"})

	requestTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "verification_time_seconds",
		Help:      "Histogram for the verification latency",
		Buckets:   timeBuckets,
	}, []string{"status"})

	requestTimeSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  metricsNamespace,
		Name:       "verification_time",
		Help:       "Summary for the verification latency",
		Objectives: metricsSummaryQuantile,
	}, []string{"status"})

	candidatesPerRequest = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "verification_candidates",
		Help:      "Histogram for the number of unique candidates per verification",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	envCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "environment_created",
		Help:      "Total number of environment build by environment builder",
	})

	envInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "environment_in_use",
		Help:      "Total number of environment currently in use",
	})
)

func init() {
	prometheus.MustRegister(candidateCount, candidateTimeHist)
	prometheus.MustRegister(requestCount, requestTimeHist, requestTimeSummary, candidatesPerRequest)
	prometheus.MustRegister(envCreated, envInUse)
}

func execObserve(res worker.Response) {
	status := res.Outcome.Status.String()
	candidateCount.WithLabelValues(status).Inc()
	if res.Started {
		candidateTimeHist.WithLabelValues(status).Observe(res.Outcome.Duration.Seconds())
	}
}

func verifyObserve(r types.VerificationResult, d time.Duration) {
	status := r.Status.String()
	requestCount.WithLabelValues(status, string(r.Reason)).Inc()
	requestTimeHist.WithLabelValues(status).Observe(d.Seconds())
	requestTimeSummary.WithLabelValues(status).Observe(d.Seconds())
	candidatesPerRequest.Observe(float64(len(r.Candidates)))
}

// registerPoolStats exports the pool counters kept by the pool itself
func registerPoolStats(p *pool.Pool) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "environment_live",
		Help:      "Number of environments alive, idle or in use",
	}, func() float64 {
		created, _ := p.Stats()
		return float64(created)
	}))
}

var _ pool.EnvBuilder = &metricsEnvBuilder{}

type metricsEnvBuilder struct {
	pool.EnvBuilder
}

func (b *metricsEnvBuilder) Build() (pool.Environment, error) {
	e, err := b.EnvBuilder.Build()
	if err != nil {
		return nil, err
	}
	envCreated.Inc()
	return e, nil
}

var _ sandbox.EnvironmentPool = &metricsEnvPool{}

type metricsEnvPool struct {
	sandbox.EnvironmentPool
}

func (p *metricsEnvPool) Get() (envexec.Environment, error) {
	e, err := p.EnvironmentPool.Get()
	if err != nil {
		return nil, err
	}
	envInUse.Inc()
	return e, nil
}

func (p *metricsEnvPool) Put(env envexec.Environment) {
	p.EnvironmentPool.Put(env)
	envInUse.Dec()
}

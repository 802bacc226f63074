package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oscap-monitor/internal/models"
	"oscap-monitor/internal/store"
)

// sampleCollector exposes the latest stored sample per node as Prometheus
// gauges. Values are read from the store at scrape time, so the endpoint
// always reflects what the collector last persisted.
type sampleCollector struct {
	store   *store.MetricsStore
	metrics []sampleMetric
}

type sampleMetric struct {
	desc  *prometheus.Desc
	value func(s *models.MetricSample) float64
}

func newSampleCollector(s *store.MetricsStore) *sampleCollector {
	gauge := func(name, help string, value func(*models.MetricSample) float64) sampleMetric {
		return sampleMetric{
			desc:  prometheus.NewDesc(name, help, []string{"node"}, nil),
			value: value,
		}
	}

	return &sampleCollector{
		store: s,
		metrics: []sampleMetric{
			gauge("openstack_cpu_utilization_percent", "CPU utilization of the hypervisor in percent",
				func(s *models.MetricSample) float64 { return s.CPUUtilization }),
			gauge("openstack_cpu_used", "vCPUs in use on the hypervisor",
				func(s *models.MetricSample) float64 { return float64(s.VCPUsUsed) }),
			gauge("openstack_cpu_total", "vCPU capacity of the hypervisor",
				func(s *models.MetricSample) float64 { return float64(s.VCPUsTotal) }),
			gauge("openstack_memory_utilization_percent", "Memory utilization of the hypervisor in percent",
				func(s *models.MetricSample) float64 { return s.MemoryUtilization }),
			gauge("openstack_memory_used_mb", "Memory in use on the hypervisor in MB",
				func(s *models.MetricSample) float64 { return float64(s.MemoryUsedMB) }),
			gauge("openstack_memory_total_mb", "Memory capacity of the hypervisor in MB",
				func(s *models.MetricSample) float64 { return float64(s.MemoryTotalMB) }),
			gauge("openstack_disk_utilization_percent", "Disk utilization of the hypervisor in percent",
				func(s *models.MetricSample) float64 { return s.DiskUtilization }),
			gauge("openstack_disk_used_gb", "Disk in use on the hypervisor in GB",
				func(s *models.MetricSample) float64 { return float64(s.DiskUsedGB) }),
			gauge("openstack_disk_total_gb", "Disk capacity of the hypervisor in GB",
				func(s *models.MetricSample) float64 { return float64(s.DiskTotalGB) }),
			gauge("openstack_running_instances", "Instances running on the hypervisor",
				func(s *models.MetricSample) float64 { return float64(s.Instances) }),
		},
	}
}

func (c *sampleCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *sampleCollector) Collect(ch chan<- prometheus.Metric) {
	names, err := c.store.ListNodes()
	if err != nil {
		return
	}

	for _, name := range names {
		sample, err := c.store.GetLatestSample(name)
		if err != nil {
			continue
		}
		for _, m := range c.metrics {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.GaugeValue, m.value(sample), sample.Node)
		}
	}
}

// MetricsExporter returns the /metrics handler backed by a dedicated registry
// so only the node gauges are exposed
func MetricsExporter(s *store.MetricsStore) gin.HandlerFunc {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newSampleCollector(s))
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

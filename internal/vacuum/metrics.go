package vacuum

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes registry entities as Prometheus metrics.
//
// It reads the last poll snapshots from the registry on each scrape;
// no device traffic is generated by scraping. Entities that have not
// completed a successful poll yet export no series.
type MetricsCollector struct {
	registry *Registry

	batteryPercent     *prometheus.GaugeVec
	state              *prometheus.GaugeVec
	fanSpeed           *prometheus.GaugeVec
	totalCleaningCount *prometheus.GaugeVec
	consumableLife     *prometheus.GaugeVec
	consumableLeft     *prometheus.GaugeVec
	lastPoll           *prometheus.GaugeVec
}

// NewMetricsCollector creates a collector over the given registry.
func NewMetricsCollector(registry *Registry) *MetricsCollector {
	labels := []string{"device_id", "device_name"}
	stateLabels := []string{"device_id", "device_name", "state"}
	fanLabels := []string{"device_id", "device_name", "fan_speed"}
	consumableLabels := []string{"device_id", "device_name", "consumable"}

	return &MetricsCollector{
		registry: registry,
		batteryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_battery_percent",
			Help: "Battery percentage (0-100)",
		}, labels),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_state",
			Help: "Vacuum state (label) mapped from the vendor status code",
		}, stateLabels),
		fanSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_fan_speed",
			Help: "Fan speed (label)",
		}, fanLabels),
		totalCleaningCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_total_cleaning_count",
			Help: "Total cleaning count",
		}, labels),
		consumableLife: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_consumable_life_percent",
			Help: "Remaining consumable life (0-100)",
		}, consumableLabels),
		consumableLeft: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_consumable_left_hours",
			Help: "Remaining consumable life (hours)",
		}, consumableLabels),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreame_bridge_last_poll_timestamp_seconds",
			Help: "Last successful poll timestamp (seconds since epoch)",
		}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.batteryPercent.Describe(ch)
	c.state.Describe(ch)
	c.fanSpeed.Describe(ch)
	c.totalCleaningCount.Describe(ch)
	c.consumableLife.Describe(ch)
	c.consumableLeft.Describe(ch)
	c.lastPoll.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.batteryPercent.Reset()
	c.state.Reset()
	c.fanSpeed.Reset()
	c.totalCleaningCount.Reset()
	c.consumableLife.Reset()
	c.consumableLeft.Reset()
	c.lastPoll.Reset()

	for _, entity := range c.registry.List() {
		snap, ok := entity.Snapshot()
		if !ok {
			continue
		}

		labels := prometheus.Labels{
			"device_id":   entity.ID(),
			"device_name": entity.Name(),
		}
		c.batteryPercent.With(labels).Set(float64(snap.Status.Battery))
		c.totalCleaningCount.With(labels).Set(float64(snap.Status.TotalCleanCount))
		c.lastPoll.With(labels).Set(float64(snap.PolledAt.Unix()))

		state, _ := StateFromCode(snap.Status.StatusCode)
		c.state.With(prometheus.Labels{
			"device_id":   entity.ID(),
			"device_name": entity.Name(),
			"state":       string(state),
		}).Set(1)

		if name, known := FanSpeedName(snap.Status.FanSpeed); known {
			c.fanSpeed.With(prometheus.Labels{
				"device_id":   entity.ID(),
				"device_name": entity.Name(),
				"fan_speed":   name,
			}).Set(1)
		}

		consumables := []struct {
			name string
			life int
			left int
		}{
			{name: "main_brush", life: snap.Status.BrushLifeLevel, left: snap.Status.BrushLeftTime},
			{name: "side_brush", life: snap.Status.BrushLifeLevel2, left: snap.Status.BrushLeftTime2},
			{name: "filter", life: snap.Status.FilterLifeLevel, left: snap.Status.FilterLeftTime},
		}
		for _, consumable := range consumables {
			consumableLabels := prometheus.Labels{
				"device_id":   entity.ID(),
				"device_name": entity.Name(),
				"consumable":  consumable.name,
			}
			c.consumableLife.With(consumableLabels).Set(float64(consumable.life))
			c.consumableLeft.With(consumableLabels).Set(float64(consumable.left))
		}
	}

	c.batteryPercent.Collect(ch)
	c.state.Collect(ch)
	c.fanSpeed.Collect(ch)
	c.totalCleaningCount.Collect(ch)
	c.consumableLife.Collect(ch)
	c.consumableLeft.Collect(ch)
	c.lastPoll.Collect(ch)
}

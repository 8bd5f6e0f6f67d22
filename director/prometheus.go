package director

import (
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fortressmdm",
		Name:      "commands_issued_total",
		Help:      "Number of device commands issued.",
	})
	CommandsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fortressmdm",
		Name:      "commands_completed_total",
		Help:      "Number of device commands reported as completed.",
	})
	CommandsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fortressmdm",
		Name:      "commands_failed_total",
		Help:      "Number of device commands reported as failed.",
	})
	HeartbeatsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fortressmdm",
		Name:      "heartbeats_received_total",
		Help:      "Number of device status heartbeats received.",
	})

	deviceCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fortressmdm",
		Name:      "devices",
		Help:      "Number of enrolled devices by status.",
	}, []string{"status"})
)

// Metrics starts the background loop that keeps the device gauges current.
func (d *Director) Metrics() {
	go d.collectDeviceCounts()
}

func (d *Director) collectDeviceCounts() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for ; true; <-ticker.C {
		var rows []struct {
			Status string
			Total  int64
		}
		err := d.db.Model(&types.Device{}).
			Select("status, count(*) as total").
			Group("status").
			Scan(&rows).Error
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), Metric: "fortressmdm_devices"})
			continue
		}

		counts := map[string]int64{
			types.DeviceStatusOnline:  0,
			types.DeviceStatusOffline: 0,
			types.DeviceStatusWarning: 0,
		}
		for _, row := range rows {
			counts[row.Status] = row.Total
		}
		for status, total := range counts {
			deviceCount.WithLabelValues(status).Set(float64(total))
		}
	}
}

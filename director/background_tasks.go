package director

import (
	"fmt"
	"time"
)

const staleSweepInterval = time.Minute

// StaleDeviceSweeper periodically downgrades devices that have stopped
// heartbeating. The sweeper and the heartbeat handler are the only writers
// of device status.
func (d *Director) StaleDeviceSweeper() {
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()

	for ; true; <-ticker.C {
		warned, offlined, err := d.MarkStaleDevices(time.Now().UTC())
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), Action: "stale_device_sweep"})
			continue
		}
		if warned > 0 || offlined > 0 {
			InfoLogger(LogHolder{
				Message: "Stale device sweep downgraded devices",
				Action:  "stale_device_sweep",
				Metric:  fmt.Sprintf("warned=%d offlined=%d", warned, offlined),
			})
		}
	}
}

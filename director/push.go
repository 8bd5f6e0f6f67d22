package director

import (
	"context"
	"fmt"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/pkg/errors"
	"github.com/vmihailenco/taskq/v3"
)

// schedulePush queues a wake-up ping for the device so it heartbeats ahead
// of its next interval. Everything about this path is best effort: no queue,
// no push token, or a full queue all degrade to plain polling latency.
func (d *Director) schedulePush(device types.Device, command types.DeviceCommand) {
	if d.pushQueue == nil || d.pushTask == nil {
		return
	}
	if device.PushToken == "" {
		DebugLogger(LogHolder{
			Message:  "Device has no push token, waiting for next poll",
			DeviceID: fmt.Sprint(device.ID),
		})
		return
	}

	ctx := context.Background()
	msg := d.pushTask.WithArgs(ctx, device.PushToken, uint64(command.ID))
	err := d.pushQueue.Add(msg)
	switch {
	case errors.Is(msg.Err, taskq.ErrDuplicate):
		DebugLogger(LogHolder{DeviceID: fmt.Sprint(device.ID), Message: msg.Err.Error()})
	case err != nil:
		ErrorLogger(LogHolder{DeviceID: fmt.Sprint(device.ID), Message: err.Error()})
	case msg.Err != nil:
		ErrorLogger(LogHolder{DeviceID: fmt.Sprint(device.ID), Message: msg.Err.Error()})
	}
}

// ProcessPushQueue runs the push queue consumer until the context ends.
func (d *Director) ProcessPushQueue(ctx context.Context) {
	if d.pushQueue == nil {
		return
	}
	consumer := d.pushQueue.Consumer()
	DebugLogger(LogHolder{Message: "Processing items from the push queue"})
	if err := consumer.Start(ctx); err != nil {
		msg := fmt.Errorf("starting push consumer: %v", err.Error())
		ErrorLogger(LogHolder{Message: msg.Error()})
	}
}

package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/wifipub/internal/journal"
)

const (
	publishMeasurement   = "publish"
	lifecycleMeasurement = "lifecycle"
)

// RecordPublish writes one point per publish attempt:
//
//	publish,device_id=wifipub-001,topic=int32_publisher ok=true,value=41i
//
// A failed attempt carries ok=false and the error text.
func (c *Client) RecordPublish(topic string, value int32, err error) {
	fields := map[string]any{
		"value": int64(value),
		"ok":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.writePoint(publishMeasurement, map[string]string{"topic": topic}, fields)
}

// Record writes a lifecycle event as a point tagged with its kind, so the
// journal can be mirrored next to the publish series. Detail values become
// fields. It never returns an error; failures arrive through SetOnError.
func (c *Client) Record(_ context.Context, kind journal.Kind, detail map[string]any, cause error) error {
	fields := make(map[string]any, len(detail)+2)
	for k, v := range detail {
		fields[k] = v
	}
	fields["ok"] = cause == nil
	if cause != nil {
		fields["error"] = cause.Error()
	}
	c.writePoint(lifecycleMeasurement, map[string]string{"kind": string(kind)}, fields)
	return nil
}

// writePoint adds the device tag and queues the point. Dropped when closed.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.mu.RLock()
	connected, deviceID := c.connected, c.deviceID
	c.mu.RUnlock()
	if !connected {
		return
	}

	if deviceID != "" {
		tags["device_id"] = deviceID
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

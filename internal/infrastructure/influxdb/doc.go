// Package influxdb provides InfluxDB connectivity for wifipub publish
// telemetry.
//
// It wraps the official influxdb-client-go v2 library. When enabled, every
// publish attempt becomes one point in the "publish" measurement, so the
// publish rate and failures can be charted next to the device's uptime.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "wifipub",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	publisher.SetSampleSink(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb

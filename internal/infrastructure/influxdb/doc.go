// Package influxdb records lock telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, non-blocking
// batched writes and health checks. Three measurements are written:
//
//	lock_state    device_id | state, locked, battery_level, charging
//	lock_event    device_id, event | count, detail
//	lock_command  device_id, command, outcome | count
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteLockState("12345", "Locked", true, &battery, nil)
//
// Write methods are safe on a nil or closed client and drop the point.
// Async write failures are delivered to the SetOnError callback.
package influxdb

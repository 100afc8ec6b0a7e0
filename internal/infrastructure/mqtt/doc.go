// Package mqtt provides MQTT connectivity for the lock bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing lock state, command acks and events
//   - Command topic subscriptions, restored after reconnect
//   - Last Will on the bridge health topic for offline detection
//
// # Topic layout
//
//	graylogic/state/lock/{id}      retained lock state
//	graylogic/command/lock/{id}    {"capability":"locked","value":true}
//	graylogic/ack/lock/{id}        command result
//	graylogic/health/lock          retained bridge health, Last Will
//	graylogic/core/event/{type}    bridge events (lock_opened)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllLockCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.Topics{}.DeviceID("command", topic)
//	        return handleCommand(id, payload)
//	    })
//
// TLS should be enabled outside local development (cfg.Broker.TLS).
package mqtt

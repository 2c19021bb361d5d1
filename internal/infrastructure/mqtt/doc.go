// Package mqtt provides the MQTT 3.1.1 middleware session for wifipub.
//
// This package manages:
//   - Connection to the broker or agent, optionally over a caller-supplied
//     byte stream (the middleware transport binding)
//   - Message publishing with QoS 0-2 and the retain flag
//   - Connection health monitoring
//
// # Architecture
//
// The periodic publisher hands serialized messages to a middleware Session.
// Client implements that session over paho.mqtt.golang:
//
//	publisher → middleware.Publisher → mqtt.Client → broker
//
// Auto-reconnect is off. A dropped link is reported once through
// SetOnDisconnect and later publishes fail with ErrNotConnected.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) on untrusted networks
//   - Set credentials via WIFIPUB_MQTT_USERNAME and WIFIPUB_MQTT_PASSWORD
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, nil)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(ctx, "int32_publisher", payload)
package mqtt

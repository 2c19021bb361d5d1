// Package mqtt5 provides the MQTT 5 middleware session for wifipub, built on
// paho.golang.
//
// It shares configuration, topic validation and client id generation with
// the MQTT 3.1.1 session in package mqtt; select it with
// middleware.transport: "mqtt5".
package mqtt5

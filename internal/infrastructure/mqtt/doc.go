// Package mqtt provides MQTT client connectivity for the Dreame bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT as its integration surface with the home-automation
// platform. The platform publishes commands and the bridge publishes state,
// acks, and health:
//
//	Platform ↔ MQTT Broker ↔ Dreame Bridge ↔ Vacuums (miio)
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Bridge.TopicPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Receive commands for all vacuums
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
//
//	// Publish retained state
//	client.PublishRetained(topics.State("vacuum-hallway"), stateJSON)
package mqtt

// Package config loads and validates the dreame-bridge configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by DREAME_* environment variables. Validation
// rejects configurations that would let the bridge start in a broken or
// insecure state (missing vacuum entries, malformed miio tokens, weak
// JWT secrets).
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config

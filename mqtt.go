package main

import (
	"context"
	"encoding/json"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aramirez92/gprs-sim900/sim900"
)

// startMQTT connects to the configured broker and subscribes to the send
// topic; each JSON payload {to, message} is forwarded to SendSMS. Returns
// nil when no broker is configured. The client disconnects when ctx ends.
func startMQTT(ctx context.Context, config *Config, logger *slog.Logger, modem *sim900.Orchestrator) mqtt.Client {
	if config.MqttBroker == "" {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MqttBroker)
	opts.SetClientID(config.MqttClientID)
	if config.MqttUser != "" {
		opts.SetUsername(config.MqttUser)
		opts.SetPassword(config.MqttPass)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("MQTT connected, subscribing", "topic", config.MqttTopic)
		token := c.Subscribe(config.MqttTopic, 0, func(_ mqtt.Client, m mqtt.Message) {
			var req struct {
				To      string `json:"to"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(m.Payload(), &req); err != nil {
				logger.Warn("MQTT bad payload", "error", err)
				return
			}
			if req.To == "" || req.Message == "" {
				logger.Warn("MQTT payload missing to/message")
				return
			}
			ref, err := modem.SendSMS(ctx, req.To, req.Message)
			if err != nil {
				logger.Error("Failed to send SMS from MQTT", "error", err, "to", req.To)
				return
			}
			logger.Info("SMS sent from MQTT", "to", req.To, "ref", ref)
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("MQTT subscribe failed", "error", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("MQTT connect failed", "error", token.Error())
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(500)
	}()
	return client
}

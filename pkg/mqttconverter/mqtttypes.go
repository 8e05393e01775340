package mqttconverter

import mqtt "github.com/eclipse/paho.mqtt.golang"

// ClientFactory builds the Paho client from the assembled options.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// ConnectionObserver is notified of connection state changes. Calls arrive on
// Paho's goroutines and must not block.
type ConnectionObserver interface {
	// OnConnected fires once the client is connected and subscribed, both on
	// the initial connection and after every reconnect.
	OnConnected()
	OnConnectionLost(err error)
	OnReconnecting()
}

type noopObserver struct{}

func (noopObserver) OnConnected()           {}
func (noopObserver) OnConnectionLost(error) {}
func (noopObserver) OnReconnecting()        {}

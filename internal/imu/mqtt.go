package imu

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/sensor"
)

// Subscriber is a topic subscription API. PahoSubscriber implements it over a
// connected paho client.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
	Unsubscribe(topic string) error
}

// PahoSubscriber subscribes at QoS 0 and waits on every token.
type PahoSubscriber struct {
	Client mqtt.Client
}

// ConnectMQTT connects to broker and returns a subscriber over the
// connection.
func ConnectMQTT(broker, clientID string) (*PahoSubscriber, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, token.Error())
	}
	monitoring.Logf("imu: connected to MQTT broker at %s", broker)
	return &PahoSubscriber{Client: client}, nil
}

func (p *PahoSubscriber) Subscribe(topic string, handler func([]byte)) error {
	token := p.Client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (p *PahoSubscriber) Unsubscribe(topic string) error {
	token := p.Client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Disconnect closes the broker connection, waiting up to 250ms for in-flight
// work.
func (p *PahoSubscriber) Disconnect() {
	p.Client.Disconnect(250)
}

// MQTTSource reads one sensor kind from an MQTT topic. The publisher decides
// the sample rate, so the requested interval is only logged.
type MQTTSource struct {
	sub   Subscriber
	topic string
	kind  sensor.Kind
}

// NewMQTTSource returns a source for kind on topic.
func NewMQTTSource(sub Subscriber, kind sensor.Kind, topic string) *MQTTSource {
	return &MQTTSource{sub: sub, topic: topic, kind: kind}
}

func (m *MQTTSource) Kind() sensor.Kind { return m.kind }

// Topic returns the subscribed topic.
func (m *MQTTSource) Topic() string { return m.topic }

func (m *MQTTSource) Subscribe(interval time.Duration, emit func(sensor.Reading)) (func(), error) {
	// Handlers run on the client's goroutine; stopped keeps late deliveries
	// after unsubscribe from reaching emit.
	var mu sync.Mutex
	stopped := false

	err := m.sub.Subscribe(m.topic, func(payload []byte) {
		f, r, err := ParseFrame(payload)
		if err != nil {
			monitoring.Logf("imu mqtt %s: %v", m.topic, err)
			return
		}
		if f.Sensor != "" {
			if kind, err := ParseKind(f.Sensor); err != nil || kind != m.kind {
				monitoring.Logf("imu mqtt %s: ignoring %q frame", m.topic, f.Sensor)
				return
			}
		}
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			emit(r)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", m.topic, err)
	}
	monitoring.Logf("imu mqtt: subscribed to %s (%s, requested every %s)", m.topic, m.kind, interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			if err := m.sub.Unsubscribe(m.topic); err != nil {
				monitoring.Logf("imu mqtt: unsubscribe %s: %v", m.topic, err)
			}
		})
	}, nil
}

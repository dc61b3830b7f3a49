// Package topic parses inbound MQTT telemetry topics into state events.
// Parsing is pure: no I/O, no logging, no shared state.
package topic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/espresso-dash/internal/logic"
)

// DefaultNamespace is the topic namespace used by the machine's controller.
const DefaultNamespace = "gaggia_classic"

// stateSuffix is the trailing segment of every telemetry topic.
const stateSuffix = "state"

// Rejection reasons. All of them wrap ErrRejected.
var (
	ErrRejected       = errors.New("topic rejected")
	ErrTopicPattern   = fmt.Errorf("%w: not <namespace>/<device>/<key>/state", ErrRejected)
	ErrNamespace      = fmt.Errorf("%w: namespace mismatch", ErrRejected)
	ErrDeviceMismatch = fmt.Errorf("%w: device id mismatch", ErrRejected)
	ErrUnknownKey     = fmt.Errorf("%w: unknown key", ErrRejected)
)

// keyFields is the fixed key table. Order is the subscription order.
var keyFields = []struct {
	key   string
	field logic.Field
}{
	{"brew_setpoint", logic.FieldSetTemp},
	{"steam_setpoint", logic.FieldSetTemp},
	{"heater", logic.FieldHeater},
	{"shot_volume", logic.FieldShotVolume},
	{"set_temp", logic.FieldSetTemp},
	{"current_temp", logic.FieldCurrentTemp},
	{"pressure", logic.FieldPressure},
	{"shot_state", logic.FieldShot},
	{"steam_state", logic.FieldSteam},
}

// HeaterKey is the key used for outbound heater commands.
const HeaterKey = "heater"

// FieldForKey looks up the state field a key writes.
func FieldForKey(key string) (logic.Field, bool) {
	for _, kf := range keyFields {
		if kf.key == key {
			return kf.field, true
		}
	}
	return logic.FieldNone, false
}

// Router parses topics for one configured device.
type Router struct {
	namespace string
	deviceID  string
}

// NewRouter creates a Router. An empty namespace selects DefaultNamespace.
func NewRouter(namespace, deviceID string) *Router {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Router{namespace: namespace, deviceID: deviceID}
}

// Parse converts a (topic, payload) pair into a telemetry event.
// A non-nil error means the message is rejected and must not reach the store.
func (r *Router) Parse(topic string, payload []byte) (logic.Event, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] != stateSuffix {
		return logic.Event{}, ErrTopicPattern
	}
	if parts[0] != r.namespace {
		return logic.Event{}, ErrNamespace
	}
	if parts[1] != r.deviceID {
		return logic.Event{}, ErrDeviceMismatch
	}

	key := parts[2]
	field, ok := FieldForKey(key)
	if !ok {
		return logic.Event{}, ErrUnknownKey
	}

	ev := logic.Event{Kind: logic.EventTelemetry, Field: field, Key: key}
	if field.IsBool() {
		ev.Bool = ParseBool(payload)
	} else {
		var ok bool
		ev.Float, ok = ParseFloat(payload)
		ev.Malformed = !ok
	}
	return ev, nil
}

// Subscriptions returns one topic per recognized key.
func (r *Router) Subscriptions() []string {
	topics := make([]string, 0, len(keyFields))
	for _, kf := range keyFields {
		topics = append(topics, r.StateTopic(kf.key))
	}
	return topics
}

// StateTopic returns <namespace>/<device>/<key>/state.
func (r *Router) StateTopic(key string) string {
	return r.namespace + "/" + r.deviceID + "/" + key + "/" + stateSuffix
}

// ParseBool reports whether payload is "ON", "1" or "true" (case-insensitive).
// Anything else is false.
func ParseBool(payload []byte) bool {
	s := strings.TrimSpace(string(payload))
	return strings.EqualFold(s, "ON") || s == "1" || strings.EqualFold(s, "true")
}

// ParseFloat parses a locale-independent decimal number.
// Malformed or non-finite input yields (0, false).
func ParseFloat(payload []byte) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

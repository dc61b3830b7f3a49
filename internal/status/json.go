package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Mode          string      `json:"mode"`
	Color         string      `json:"color"`
	ShotLabel     string      `json:"shot_label"`
	Machine       MachineJSON `json:"machine"`
	Gauges        GaugesJSON  `json:"gauges"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Frames        uint64      `json:"frames"`
	Seq           uint64      `json:"seq"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"message_counts"`
	LastRejected  string      `json:"last_rejected,omitempty"`
	Queue         QueueJSON   `json:"queue"`
	Config        ConfigJSON  `json:"config"`
}

// MachineJSON is the JSON representation of the machine state.
type MachineJSON struct {
	HeaterOn     bool    `json:"heater_on"`
	SteamMode    bool    `json:"steam_mode"`
	ShotActive   bool    `json:"shot_active"`
	SetTempC     float64 `json:"set_temp_c"`
	CurrentTempC float64 `json:"current_temp_c"`
	PressureBar  float64 `json:"pressure_bar"`
	ShotVolumeML float64 `json:"shot_volume_ml"`
}

// GaugeJSON is the JSON representation of one gauge.
type GaugeJSON struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Needle    float64 `json:"needle"`
	BandStart float64 `json:"band_start"`
	BandEnd   float64 `json:"band_end"`
}

// GaugesJSON holds both gauges.
type GaugesJSON struct {
	Temperature GaugeJSON `json:"temperature"`
	Pressure    GaugeJSON `json:"pressure"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of message counts.
type CountsJSON struct {
	Received  int64 `json:"received"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Malformed int64 `json:"malformed"`
	Dropped   int64 `json:"dropped"`
	Commands  int64 `json:"commands"`
}

// QueueJSON is the JSON representation of the event queue.
type QueueJSON struct {
	Capacity  int   `json:"capacity"`
	LastBatch int   `json:"last_batch"`
	PeakBatch int   `json:"peak_batch"`
	Delivered int64 `json:"delivered"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Namespace string `json:"namespace"`
	DeviceID  string `json:"device_id"`
	TickMs    int64  `json:"tick_ms"`
	QueueSize int    `json:"queue_size"`
	HTTPAddr  string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Display
	s := snap.State
	return StatusInner{
		Mode:      m.Label,
		Color:     m.Background.Hex(),
		ShotLabel: snap.ShotLabel,
		Machine: MachineJSON{
			HeaterOn:     s.HeaterOn,
			SteamMode:    s.SteamMode,
			ShotActive:   s.ShotActive,
			SetTempC:     s.SetTempC,
			CurrentTempC: s.CurrentTempC,
			PressureBar:  s.PressureBar,
			ShotVolumeML: s.ShotVolumeML,
		},
		Gauges: GaugesJSON{
			Temperature: GaugeJSON{
				Min: m.Temperature.Min, Max: m.Temperature.Max, Needle: m.Temperature.Needle,
				BandStart: m.Temperature.Band.Start, BandEnd: m.Temperature.Band.End,
			},
			Pressure: GaugeJSON{
				Min: m.Pressure.Min, Max: m.Pressure.Max, Needle: m.Pressure.Needle,
				BandStart: m.Pressure.Band.Start, BandEnd: m.Pressure.Band.End,
			},
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Frames:        snap.Frames,
		Seq:           snap.Seq,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Received:  snap.Counts.Received,
			Accepted:  snap.Counts.Accepted,
			Rejected:  snap.Counts.Rejected,
			Malformed: snap.Counts.Malformed,
			Dropped:   snap.Counts.Dropped,
			Commands:  snap.Counts.Commands,
		},
		LastRejected: snap.LastRejected,
		Queue: QueueJSON{
			Capacity:  snap.Queue.Capacity,
			LastBatch: snap.Queue.LastBatch,
			PeakBatch: snap.Queue.PeakBatch,
			Delivered: snap.Queue.Delivered,
		},
		Config: ConfigJSON{
			Namespace: snap.Config.Namespace,
			DeviceID:  snap.Config.DeviceID,
			TickMs:    snap.Config.TickMs,
			QueueSize: snap.Config.QueueSize,
			HTTPAddr:  snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompactJSON returns the JSON status on one line, for the live feed.
func FormatCompactJSON(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
	return data
}

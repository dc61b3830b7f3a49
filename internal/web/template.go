package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/espresso-dash/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"num": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Espresso Dash</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
#banner { color: #fff; padding: 0.6em 1em; font-weight: bold; font-size: 1.3em; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Espresso Dash<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<div id="banner" style="background: {{.Display.Background.Hex}}"><span id="mode">{{.Display.Label}}</span> <span id="shot-label" style="float: right">{{.ShotLabel}}</span></div>

<h2>Machine</h2>
<table>
<tr><th>Heater</th><td id="heater">{{onOff .State.HeaterOn}}</td></tr>
<tr><th>Steam</th><td id="steam">{{onOff .State.SteamMode}}</td></tr>
<tr><th>Temperature</th><td><span id="temp">{{num .State.CurrentTempC}}</span> &deg;C (set <span id="setpoint">{{num .State.SetTempC}}</span>, scale {{num .Display.Temperature.Min}}&ndash;{{num .Display.Temperature.Max}})</td></tr>
<tr><th>Pressure</th><td><span id="pressure">{{num .Display.Pressure.Needle}}</span> bar</td></tr>
<tr><th>Shot volume</th><td><span id="volume">{{num .State.ShotVolumeML}}</span> ml</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td id="mqtt" class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Device</th><td>{{.Config.Namespace}}/{{.Config.DeviceID}}</td></tr>
</table>

<h2>Message Counts</h2>
<table>
<tr><th>Received</th><td>{{.Counts.Received}}</td></tr>
<tr><th>Accepted</th><td>{{.Counts.Accepted}}</td></tr>
<tr><th>Rejected</th><td>{{.Counts.Rejected}}{{if .LastRejected}} (last: {{.LastRejected}}){{end}}</td></tr>
<tr><th>Malformed</th><td>{{.Counts.Malformed}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Queue</th><td>{{.Config.QueueSize}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function el(id) { return document.getElementById(id); }
  function onOff(b) { return b ? "ON" : "OFF"; }
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        el("banner").style.background = s.color;
        el("mode").textContent = s.mode;
        el("shot-label").textContent = s.shot_label;
        el("heater").textContent = onOff(s.machine.heater_on);
        el("steam").textContent = onOff(s.machine.steam_mode);
        el("temp").textContent = s.machine.current_temp_c.toFixed(1);
        el("setpoint").textContent = s.machine.set_temp_c.toFixed(1);
        el("pressure").textContent = s.gauges.pressure.needle.toFixed(1);
        el("volume").textContent = s.machine.shot_volume_ml.toFixed(1);
        var m = el("mqtt");
        m.textContent = s.mqtt.connected ? "connected" : "disconnected";
        m.className = s.mqtt.connected ? "connected" : "disconnected";
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}

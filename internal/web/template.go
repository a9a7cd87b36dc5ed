package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"swatch": func(hex string) template.CSS {
		return template.CSS("background:" + hex)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nightlight</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.swatch { display: inline-block; width: 1em; height: 1em; border: 1px solid #888; vertical-align: middle; margin-right: 6px; }
.ok { color: green; }
.bad { color: red; }
.off { color: #888; }
</style>
</head>
<body>
<h1>Nightlight</h1>

<h2>Light</h2>
<table>
<tr><th>Displayed</th><td><span class="swatch" style="{{swatch .Displayed}}"></span>{{.Displayed}}</td></tr>
<tr><th>Color</th><td>{{.Appearance.Color.Hex}} @ {{.Appearance.Ratio}}</td></tr>
<tr><th>Source</th><td>{{orUnknown (printf "%s" .Source)}}</td></tr>
<tr><th>Window</th><td>{{if .Window}}{{.Window}}{{else}}-{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Clock</h2>
<table>
<tr><th>Time of day</th><td>{{.TimeOfDay}}</td></tr>
<tr><th>Trusted</th><td class="{{if .Trusted}}ok{{else}}bad{{end}}">{{if .Trusted}}yes{{else}}no{{end}}</td></tr>
<tr><th>Synced</th><td class="{{if .Synced}}ok{{else}}bad{{end}}">{{if .Synced}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last sync</th><td>{{if .LastSync.IsZero}}never{{else}}{{.LastSync.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
<tr><th>NTP server</th><td>{{.Config.NTPServer}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
</table>

<h2>Schedule</h2>
<table>
<tr><th>Window</th><td>From</td><td>To</td><td>Color</td></tr>
{{range .Config.Alarms}}<tr class="{{if not .Enabled}}off{{end}}"><th>{{.Name}}</th><td>{{.From}}</td><td>{{.To}}</td><td><span class="swatch" style="{{swatch .Color}}"></span>{{.Color}} @ {{.Ratio}}</td></tr>
{{end}}</table>
<p>Gap policy: {{.Config.GapPolicy}}, fallback {{.Config.Fallback}}</p>

<h2>Connectivity</h2>
<table>
<tr><th>Network</th><td class="{{if .NetworkConnected}}ok{{else}}bad{{end}}">{{if .NetworkConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Network}}<tr><th>Interface</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}ok{{else}}bad{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Writes</th><td>{{.Counts.Writes}}</td></tr>
<tr><th>Resync OK</th><td>{{.Counts.ResyncOK}}</td></tr>
<tr><th>Resync failed</th><td>{{.Counts.ResyncFailed}}</td></tr>
<tr><th>Trust lost</th><td>{{.Counts.TrustLost}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot ID</th><td>{{.BootID}}</td></tr>
<tr><th>Output</th><td>{{.Config.Driver}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Resync interval</th><td>{{.Config.ResyncIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/history.json">History</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Displayed string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Displayed: snap.Appearance.Dimmed().Hex(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render status page")
	}
}

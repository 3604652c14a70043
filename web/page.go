package web

import (
	"html/template"
	"net/http"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>blacksky-md</title>
<style>
body { font-family: sans-serif; background: #111; color: #eee; text-align: center; padding-top: 2em; }
.status { font-size: 1.2em; margin-bottom: 1em; }
.connected { color: #4caf50; }
.waiting { color: #ffb300; }
.error { color: #f44336; }
.code { font-size: 2em; letter-spacing: 0.3em; font-family: monospace; }
img { background: #fff; padding: 12px; border-radius: 8px; }
small { color: #888; }
</style>
</head>
<body>
<h1>blacksky-md</h1>
{{if eq .State "connected"}}
<p class="status connected">✅ Connected{{if .Number}} as +{{.Number}}{{end}}</p>
{{else if eq .State "qr_ready"}}
<p class="status waiting">Scan this QR code with WhatsApp</p>
<img src="/qr.png" alt="QR code" width="320" height="320">
{{else if eq .State "pairing_code_ready"}}
<p class="status waiting">Enter this code in WhatsApp &rarr; Linked Devices</p>
<p class="code">{{.PairingCode}}</p>
{{else if eq .State "error"}}
<p class="status error">⚠️ {{.LastError}}</p>
{{else}}
<p class="status waiting">{{.State}}…</p>
{{end}}
<p><small>run {{.RunID}} &middot; reconnect attempts: {{.Attempts}}</small></p>
</body>
</html>
`))

type indexView struct {
	State       string
	Number      string
	PairingCode string
	LastError   string
	RunID       string
	Attempts    int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.src.Snapshot()
	view := indexView{
		State:       string(st.State),
		Number:      st.Number,
		PairingCode: st.PairingCode,
		LastError:   st.LastError,
		RunID:       st.RunID,
		Attempts:    st.Attempts,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, view); err != nil {
		s.log.Error().Err(err).Msg("failed to render status page")
	}
}

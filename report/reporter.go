package report

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"blacksky-md/session"
)

// Reporter POSTs status snapshots to an external webhook. Delivery is best
// effort: a failed report is logged and forgotten, never retried.
type Reporter struct {
	url    string
	client *resty.Client
	log    zerolog.Logger
}

func New(url string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second),
		log:    logger,
	}
}

// Report sends the snapshot in the background. No-op when no webhook URL is
// configured.
func (r *Reporter) Report(st session.Status) {
	if r.url == "" {
		return
	}
	go func() {
		resp, err := r.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(st).
			Post(r.url)
		if err != nil {
			r.log.Warn().Err(err).Msg("status webhook failed")
			return
		}
		if resp.IsError() {
			r.log.Warn().Int("code", resp.StatusCode()).Msg("status webhook rejected")
		}
	}()
}

package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/alert"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverNotifier delivers alert batches as push notifications.
type PushoverNotifier struct {
	cfg    config.PushoverConfig
	client *http.Client
	log    zerolog.Logger
}

func NewPushoverNotifier(cfg config.PushoverConfig, log zerolog.Logger) *PushoverNotifier {
	return &PushoverNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "pushover").Logger(),
	}
}

func (n *PushoverNotifier) Enabled() bool {
	return n.cfg.Enabled
}

// SendAlerts formats the batch into one message, one line per alert.
func (n *PushoverNotifier) SendAlerts(alerts []alert.Alert) error {
	if !n.cfg.Enabled || len(alerts) == 0 {
		return nil
	}

	var lines []string
	for _, a := range alerts {
		lines = append(lines, fmt.Sprintf("[%s] %s", a.InverterName, a.Message))
	}

	title := fmt.Sprintf("Solar fleet: %d alert(s)", len(alerts))
	return n.SendMessage(title, strings.Join(lines, "\n"))
}

func (n *PushoverNotifier) SendMessage(title, message string) error {
	if !n.cfg.Enabled {
		return nil
	}

	form := url.Values{}
	form.Set("token", n.cfg.Token)
	form.Set("user", n.cfg.User)
	form.Set("title", title)
	form.Set("message", message)

	resp, err := n.client.PostForm(pushoverEndpoint, form)
	if err != nil {
		return fmt.Errorf("pushover send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushover bad status: %s", resp.Status)
	}

	n.log.Debug().Str("title", title).Msg("pushover message sent")
	return nil
}

func (n *PushoverNotifier) SendTest() error {
	return n.SendMessage("solarwatch test", "Test notification from solarwatch")
}

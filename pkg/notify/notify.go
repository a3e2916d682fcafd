// Package notify sends test run summaries to slack, telegram, email, webhooks or a custom script.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"

	"github.com/tripqa/tripqa/pkg/config"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const (
	defaultTimeout = 10 * time.Second
	maxListed      = 10 // failed tests listed in a message
)

// Result is the run summary sent in notifications and piped to custom scripts as json.
type Result struct {
	Status   string   `json:"status"`
	RunID    string   `json:"run_id"`
	Branch   string   `json:"branch,omitempty"`
	Commit   string   `json:"commit,omitempty"`
	BaseURL  string   `json:"base_url,omitempty"`
	Duration string   `json:"duration"`
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Flaky    int      `json:"flaky"`
	Failures []string `json:"failures,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Params configure a Service. Channels name the destinations, the rest are per-channel settings.
type Params struct {
	Channels   []string
	OnError    bool
	OnComplete bool
	Timeout    time.Duration

	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// ParamsFromConfig maps notify_* config values to Params.
func ParamsFromConfig(v config.Values) Params {
	return Params{
		Channels:      v.NotifyChannels,
		OnError:       v.NotifyOnError,
		OnComplete:    v.NotifyOnComplete,
		Timeout:       time.Duration(v.NotifyTimeoutMs) * time.Millisecond,
		TelegramToken: v.NotifyTelegramToken,
		TelegramChat:  v.NotifyTelegramChat,
		SlackToken:    v.NotifySlackToken,
		SlackChannel:  v.NotifySlackChannel,
		SMTPHost:      v.NotifySMTPHost,
		SMTPPort:      v.NotifySMTPPort,
		SMTPUsername:  v.NotifySMTPUsername,
		SMTPPassword:  v.NotifySMTPPassword,
		SMTPStartTLS:  v.NotifySMTPStartTLS,
		EmailFrom:     v.NotifyEmailFrom,
		EmailTo:       v.NotifyEmailTo,
		WebhookURLs:   v.NotifyWebhookURLs,
		CustomScript:  v.NotifyCustomScript,
	}
}

type logger interface {
	Warn(format string, args ...any)
}

// sender delivers one run summary. text is the formatted message, r the raw result.
type sender interface {
	send(ctx context.Context, r Result, text string) error
	String() string
}

// pkgzSender sends the formatted text through a go-pkgz/notify destination.
type pkgzSender struct {
	n    ntfy.Notifier
	dest string
	html bool // telegram uses html parse mode
}

func (p pkgzSender) send(ctx context.Context, _ Result, text string) error {
	if p.html {
		text = html.EscapeString(text)
	}
	return p.n.Send(ctx, p.dest, text) //nolint:wrapcheck // wrapped by the caller with the sender name
}

func (p pkgzSender) String() string { return p.n.String() }

// Service sends run results to every configured channel. a nil *Service sends nothing.
type Service struct {
	senders    []sender
	onError    bool
	onComplete bool
	timeout    time.Duration
	host       string
	log        logger
}

// builder makes senders for one channel name. soft errors disable the channel with a warning
// instead of failing New.
type builder func(p Params) (senders []sender, soft bool, err error)

var builders = map[string]builder{
	"telegram": buildTelegram,
	"slack":    buildSlack,
	"email":    buildEmail,
	"webhook":  buildWebhooks,
	"custom":   buildCustom,
}

// New builds a Service. no channels means nil, nil, and Send on the nil Service is a no-op.
// misconfigured channels are an error, an unreachable telegram api only disables telegram.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service is valid and sends nothing
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	svc := &Service{onError: p.OnError, onComplete: p.OnComplete, timeout: p.Timeout, host: host, log: log}
	if svc.timeout <= 0 {
		svc.timeout = defaultTimeout
	}

	for _, name := range p.Channels {
		name = strings.ToLower(strings.TrimSpace(name))
		build, ok := builders[name]
		if !ok {
			return nil, fmt.Errorf("unknown notification channel: %q", name)
		}
		ss, soft, err := build(p)
		if err != nil && soft {
			log.Warn("%s channel disabled: %v", name, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s channel: %w", name, err)
		}
		svc.senders = append(svc.senders, ss...)
	}
	if len(svc.senders) == 0 {
		log.Warn("no notification channel is usable")
	}
	return svc, nil
}

// Send delivers r to all channels, subject to the on_error and on_complete switches.
// delivery is best effort, failures are logged.
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil || !s.wants(r.Status) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := s.message(r)
	for _, snd := range s.senders {
		if err := snd.send(ctx, r, text); err != nil {
			s.log.Warn("notification via %s failed: %v", snd, err)
		}
	}
}

func (s *Service) wants(status string) bool {
	if status == StatusSuccess {
		return s.onComplete
	}
	return s.onError
}

// message renders the plain text summary.
func (s *Service) message(r Result) string {
	var b strings.Builder
	verdict := "passed"
	if r.Status != StatusSuccess {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "tripqa run %s on %s\n\n", verdict, s.host)

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-9s %s\n", name+":", value)
		}
	}
	rev := r.Branch
	if rev != "" && r.Commit != "" {
		rev += "@" + r.Commit
	}
	field("run", r.RunID)
	field("target", r.BaseURL)
	field("branch", rev)
	field("duration", r.Duration)

	tests := fmt.Sprintf("%d total, %d passed, %d failed, %d skipped", r.Total, r.Passed, r.Failed, r.Skipped)
	if r.Flaky > 0 {
		tests += fmt.Sprintf(", %d flaky", r.Flaky)
	}
	field("tests", tests)

	for i, name := range r.Failures {
		if i == maxListed {
			fmt.Fprintf(&b, "  ... and %d more\n", len(r.Failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	field("error", r.Error)
	return b.String()
}

// newTelegram is replaced in tests, the real constructor calls the telegram api.
var newTelegram = func(token string) (ntfy.Notifier, error) {
	return ntfy.NewTelegram(ntfy.TelegramParams{Token: token}) //nolint:wrapcheck // wrapped by buildTelegram
}

func buildTelegram(p Params) ([]sender, bool, error) {
	if p.TelegramToken == "" || p.TelegramChat == "" {
		return nil, false, errors.New("notify_telegram_token and notify_telegram_chat are required")
	}
	tg, err := newTelegram(p.TelegramToken)
	if err != nil {
		// the token must not end up in the log
		return nil, true, errors.New(strings.ReplaceAll(err.Error(), p.TelegramToken, "[REDACTED]"))
	}
	return []sender{pkgzSender{n: tg, dest: "telegram:" + p.TelegramChat + "?parseMode=HTML", html: true}}, false, nil
}

func buildSlack(p Params) ([]sender, bool, error) {
	if p.SlackToken == "" || p.SlackChannel == "" {
		return nil, false, errors.New("notify_slack_token and notify_slack_channel are required")
	}
	return []sender{pkgzSender{n: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel}}, false, nil
}

func buildEmail(p Params) ([]sender, bool, error) {
	switch {
	case p.SMTPHost == "":
		return nil, false, errors.New("notify_smtp_host is required")
	case p.EmailFrom == "":
		return nil, false, errors.New("notify_email_from is required")
	case len(p.EmailTo) == 0:
		return nil, false, errors.New("notify_email_to is required")
	}
	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})
	q := url.Values{"from": {p.EmailFrom}, "subject": {"tripqa test run"}}
	dest := "mailto:" + strings.Join(p.EmailTo, ",") + "?" + q.Encode()
	return []sender{pkgzSender{n: em, dest: dest}}, false, nil
}

func buildWebhooks(p Params) ([]sender, bool, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, false, errors.New("notify_webhook_urls is required")
	}
	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	res := make([]sender, 0, len(p.WebhookURLs))
	for _, u := range p.WebhookURLs {
		res = append(res, pkgzSender{n: wh, dest: u})
	}
	return res, false, nil
}

func buildCustom(p Params) ([]sender, bool, error) {
	if p.CustomScript == "" {
		return nil, false, errors.New("notify_custom_script is required")
	}
	return []sender{scriptSender{path: p.CustomScript}}, false, nil
}

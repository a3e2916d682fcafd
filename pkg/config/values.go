package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// Values holds scalar configuration values.
// Fields ending in *Set track whether the field was explicitly set in a config file,
// so a local config can override a global one with false or 0.
type Values struct {
	BaseURL    string
	APIBaseURL string

	Headless       bool
	HeadlessSet    bool
	TimeoutMs      int
	ViewportWidth  int
	ViewportHeight int
	SlowMoMs       int
	SlowMoMsSet    bool

	ScrollStepPx      int
	ScrollIntervalMs  int
	ScrollIntervalSet bool
	ScrollIdleMs      int
	ScrollIdleMsSet   bool
	ScrollMaxSteps    int
	EndMarkerText     string
	MarkerTimeoutMs   int

	APIRetryCount    int
	APIRetryCountSet bool
	APIRetryDelayMs  int
	APIWaitTimeoutMs int

	ResultsDir     string
	ScreenshotsDir string
	CriteriaFile   string
	SeedUsers      int
	SeedUsersSet   bool

	NotifyChannels      []string
	NotifyOnError       bool
	NotifyOnErrorSet    bool
	NotifyOnComplete    bool
	NotifyOnCompleteSet bool
	NotifyTimeoutMs     int
	NotifyTelegramToken string
	NotifyTelegramChat  string
	NotifySlackToken    string
	NotifySlackChannel  string
	NotifySMTPHost      string
	NotifySMTPPort      int
	NotifySMTPUsername  string
	NotifySMTPPassword  string
	NotifySMTPStartTLS  bool
	NotifyEmailFrom     string
	NotifyEmailTo       []string
	NotifyWebhookURLs   []string
	NotifyCustomScript  string
}

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)
	return result, nil
}

// parseValuesFromFile reads a config file. a missing file or a file with only
// comments yields empty Values, so embedded defaults apply.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}
	return vl.parseValuesFromBytes(data)
}

func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses INI data into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// # is part of values like slack channels, not an inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var v Values
	section := cfg.Section("")

	strKeys := []struct {
		key   string
		field *string
	}{
		{"base_url", &v.BaseURL},
		{"api_base_url", &v.APIBaseURL},
		{"end_marker_text", &v.EndMarkerText},
		{"results_dir", &v.ResultsDir},
		{"screenshots_dir", &v.ScreenshotsDir},
		{"criteria_file", &v.CriteriaFile},
		{"notify_telegram_token", &v.NotifyTelegramToken},
		{"notify_telegram_chat", &v.NotifyTelegramChat},
		{"notify_slack_token", &v.NotifySlackToken},
		{"notify_slack_channel", &v.NotifySlackChannel},
		{"notify_smtp_host", &v.NotifySMTPHost},
		{"notify_smtp_username", &v.NotifySMTPUsername},
		{"notify_smtp_password", &v.NotifySMTPPassword},
		{"notify_email_from", &v.NotifyEmailFrom},
		{"notify_custom_script", &v.NotifyCustomScript},
	}
	for _, sk := range strKeys {
		if key, err := section.GetKey(sk.key); err == nil {
			*sk.field = strings.TrimSpace(key.String())
		}
	}

	// positive integers, zero means "not set" for these
	posKeys := []struct {
		key   string
		field *int
	}{
		{"timeout_ms", &v.TimeoutMs},
		{"viewport_width", &v.ViewportWidth},
		{"viewport_height", &v.ViewportHeight},
		{"scroll_step_px", &v.ScrollStepPx},
		{"scroll_max_steps", &v.ScrollMaxSteps},
		{"marker_timeout_ms", &v.MarkerTimeoutMs},
		{"api_retry_delay_ms", &v.APIRetryDelayMs},
		{"api_wait_timeout_ms", &v.APIWaitTimeoutMs},
		{"notify_timeout_ms", &v.NotifyTimeoutMs},
		{"notify_smtp_port", &v.NotifySMTPPort},
	}
	for _, pk := range posKeys {
		key, err := section.GetKey(pk.key)
		if err != nil {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", pk.key, intErr)
		}
		if val <= 0 {
			return Values{}, fmt.Errorf("invalid %s: must be positive, got %d", pk.key, val)
		}
		*pk.field = val
	}

	// non-negative integers where 0 is meaningful
	nonNegKeys := []struct {
		key   string
		field *int
		set   *bool
	}{
		{"slow_mo_ms", &v.SlowMoMs, &v.SlowMoMsSet},
		{"scroll_interval_ms", &v.ScrollIntervalMs, &v.ScrollIntervalSet},
		{"scroll_idle_ms", &v.ScrollIdleMs, &v.ScrollIdleMsSet},
		{"api_retry_count", &v.APIRetryCount, &v.APIRetryCountSet},
		{"seed_users", &v.SeedUsers, &v.SeedUsersSet},
	}
	for _, nk := range nonNegKeys {
		key, err := section.GetKey(nk.key)
		if err != nil {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", nk.key, intErr)
		}
		if val < 0 {
			return Values{}, fmt.Errorf("invalid %s: must be non-negative, got %d", nk.key, val)
		}
		*nk.field = val
		*nk.set = true
	}

	boolKeys := []struct {
		key   string
		field *bool
		set   *bool
	}{
		{"headless", &v.Headless, &v.HeadlessSet},
		{"notify_on_error", &v.NotifyOnError, &v.NotifyOnErrorSet},
		{"notify_on_complete", &v.NotifyOnComplete, &v.NotifyOnCompleteSet},
		{"notify_smtp_starttls", &v.NotifySMTPStartTLS, nil},
	}
	for _, bk := range boolKeys {
		key, err := section.GetKey(bk.key)
		if err != nil {
			continue
		}
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", bk.key, boolErr)
		}
		*bk.field = val
		if bk.set != nil {
			*bk.set = true
		}
	}

	// comma-separated lists
	listKeys := []struct {
		key   string
		field *[]string
	}{
		{"notify_channels", &v.NotifyChannels},
		{"notify_email_to", &v.NotifyEmailTo},
		{"notify_webhook_urls", &v.NotifyWebhookURLs},
	}
	for _, lk := range listKeys {
		if key, err := section.GetKey(lk.key); err == nil {
			*lk.field = splitList(key.String())
		}
	}

	return v, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var res []string
	for p := range strings.SplitSeq(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// stripComments removes full-line # and ; comments.
func stripComments(s string) string {
	var b strings.Builder
	for line := range strings.SplitSeq(s, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "#") || strings.HasPrefix(t, ";") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	mergeStr := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	mergeInt := func(d *int, s int) {
		if s != 0 {
			*d = s
		}
	}
	mergeList := func(d *[]string, s []string) {
		if len(s) > 0 {
			*d = s
		}
	}

	mergeStr(&dst.BaseURL, src.BaseURL)
	mergeStr(&dst.APIBaseURL, src.APIBaseURL)
	mergeStr(&dst.EndMarkerText, src.EndMarkerText)
	mergeStr(&dst.ResultsDir, src.ResultsDir)
	mergeStr(&dst.ScreenshotsDir, src.ScreenshotsDir)
	mergeStr(&dst.CriteriaFile, src.CriteriaFile)
	mergeStr(&dst.NotifyTelegramToken, src.NotifyTelegramToken)
	mergeStr(&dst.NotifyTelegramChat, src.NotifyTelegramChat)
	mergeStr(&dst.NotifySlackToken, src.NotifySlackToken)
	mergeStr(&dst.NotifySlackChannel, src.NotifySlackChannel)
	mergeStr(&dst.NotifySMTPHost, src.NotifySMTPHost)
	mergeStr(&dst.NotifySMTPUsername, src.NotifySMTPUsername)
	mergeStr(&dst.NotifySMTPPassword, src.NotifySMTPPassword)
	mergeStr(&dst.NotifyEmailFrom, src.NotifyEmailFrom)
	mergeStr(&dst.NotifyCustomScript, src.NotifyCustomScript)

	mergeInt(&dst.TimeoutMs, src.TimeoutMs)
	mergeInt(&dst.ViewportWidth, src.ViewportWidth)
	mergeInt(&dst.ViewportHeight, src.ViewportHeight)
	mergeInt(&dst.ScrollStepPx, src.ScrollStepPx)
	mergeInt(&dst.ScrollMaxSteps, src.ScrollMaxSteps)
	mergeInt(&dst.MarkerTimeoutMs, src.MarkerTimeoutMs)
	mergeInt(&dst.APIRetryDelayMs, src.APIRetryDelayMs)
	mergeInt(&dst.APIWaitTimeoutMs, src.APIWaitTimeoutMs)
	mergeInt(&dst.NotifyTimeoutMs, src.NotifyTimeoutMs)
	mergeInt(&dst.NotifySMTPPort, src.NotifySMTPPort)

	if src.HeadlessSet {
		dst.Headless, dst.HeadlessSet = src.Headless, true
	}
	if src.SlowMoMsSet {
		dst.SlowMoMs, dst.SlowMoMsSet = src.SlowMoMs, true
	}
	if src.ScrollIntervalSet {
		dst.ScrollIntervalMs, dst.ScrollIntervalSet = src.ScrollIntervalMs, true
	}
	if src.ScrollIdleMsSet {
		dst.ScrollIdleMs, dst.ScrollIdleMsSet = src.ScrollIdleMs, true
	}
	if src.APIRetryCountSet {
		dst.APIRetryCount, dst.APIRetryCountSet = src.APIRetryCount, true
	}
	if src.SeedUsersSet {
		dst.SeedUsers, dst.SeedUsersSet = src.SeedUsers, true
	}
	if src.NotifyOnErrorSet {
		dst.NotifyOnError, dst.NotifyOnErrorSet = src.NotifyOnError, true
	}
	if src.NotifyOnCompleteSet {
		dst.NotifyOnComplete, dst.NotifyOnCompleteSet = src.NotifyOnComplete, true
	}
	if src.NotifySMTPStartTLS {
		dst.NotifySMTPStartTLS = true
	}

	mergeList(&dst.NotifyChannels, src.NotifyChannels)
	mergeList(&dst.NotifyEmailTo, src.NotifyEmailTo)
	mergeList(&dst.NotifyWebhookURLs, src.NotifyWebhookURLs)
}

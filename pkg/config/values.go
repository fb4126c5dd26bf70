package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// backendSectionPrefix starts every backend section name, e.g. [backend.gemini].
const backendSectionPrefix = "backend."

// Values holds scalar configuration values.
// Fields ending in *Set track whether the field was explicitly set, so a local config
// can override a global one with a zero value.
type Values struct {
	Backends []BackendValues // priority order, from the backends key

	MaxLines            int
	MaxLinesSet         bool
	DensityThreshold    float64
	DensityThresholdSet bool
	PadGlyph            string

	KakaoSendURL        string
	KakaoTokenURL       string
	KakaoLinkURL        string
	KakaoTimeoutMs      int
	KakaoTimeoutMsSet   bool
	RefreshTimeoutMs    int
	RefreshTimeoutMsSet bool

	JournalFile    string
	JournalFileSet bool

	NotifyChannels        []string
	NotifyChannelsSet     bool
	NotifyOnFailure       bool
	NotifyOnFailureSet    bool
	NotifyOnDelivered     bool
	NotifyOnDeliveredSet  bool
	NotifyTimeoutMs       int
	NotifyTimeoutMsSet    bool
	NotifyTelegramChat    string
	NotifySlackChannel    string
	NotifySMTPHost        string
	NotifySMTPPort        int
	NotifySMTPPortSet     bool
	NotifySMTPUsername    string
	NotifySMTPStartTLS    bool
	NotifySMTPStartTLSSet bool
	NotifyEmailFrom       string
	NotifyEmailTo         []string
	NotifyWebhookURLs     []string
	NotifyCustomScript    string
}

// BackendValues is one [backend.<name>] section.
type BackendValues struct {
	Name          string
	Kind          string
	Endpoint      string
	Model         string
	MaxOutput     int
	TimeoutMs     int
	APIKeyEnv     string   // env variable holding the api key
	Command       string   // command kind only
	Args          []string // command kind only, whitespace-separated in config
	ErrorPatterns []string // command kind only
}

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
//
//nolint:dupl // same shape as colorLoader.Load
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

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if the file doesn't exist or has only comments.
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

// parseValuesFromBytes parses configuration from a byte slice into Values.
//
//nolint:gocyclo // flat list of keys
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// IgnoreInlineComment keeps # in values (hex colors, urls with fragments)
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var v Values
	section := cfg.Section("")

	// rendering
	if v.MaxLines, v.MaxLinesSet, err = nonNegativeInt(section, "max_lines"); err != nil {
		return Values{}, err
	}
	if key, kerr := section.GetKey("density_threshold"); kerr == nil {
		val, ferr := key.Float64()
		if ferr != nil {
			return Values{}, fmt.Errorf("invalid density_threshold: %w", ferr)
		}
		if val <= 0 || val > 1 {
			return Values{}, fmt.Errorf("invalid density_threshold: must be in (0, 1], got %v", val)
		}
		v.DensityThreshold, v.DensityThresholdSet = val, true
	}
	if key, kerr := section.GetKey("pad_glyph"); kerr == nil {
		v.PadGlyph = key.String()
	}

	// kakao
	if key, kerr := section.GetKey("kakao_send_url"); kerr == nil {
		v.KakaoSendURL = key.String()
	}
	if key, kerr := section.GetKey("kakao_token_url"); kerr == nil {
		v.KakaoTokenURL = key.String()
	}
	if key, kerr := section.GetKey("kakao_link_url"); kerr == nil {
		v.KakaoLinkURL = key.String()
	}
	if v.KakaoTimeoutMs, v.KakaoTimeoutMsSet, err = nonNegativeInt(section, "kakao_timeout_ms"); err != nil {
		return Values{}, err
	}
	if v.RefreshTimeoutMs, v.RefreshTimeoutMsSet, err = nonNegativeInt(section, "refresh_timeout_ms"); err != nil {
		return Values{}, err
	}

	// journal, an explicit empty value disables the file
	if key, kerr := section.GetKey("journal_file"); kerr == nil {
		v.JournalFile, v.JournalFileSet = expandTilde(key.String()), true
	}

	// notifications
	// an explicit empty value disables channels set by a lower level
	if _, kerr := section.GetKey("notify_channels"); kerr == nil {
		v.NotifyChannels, v.NotifyChannelsSet = list(section, "notify_channels"), true
	}
	if v.NotifyOnFailure, v.NotifyOnFailureSet, err = boolKey(section, "notify_on_failure"); err != nil {
		return Values{}, err
	}
	if v.NotifyOnDelivered, v.NotifyOnDeliveredSet, err = boolKey(section, "notify_on_delivered"); err != nil {
		return Values{}, err
	}
	if v.NotifyTimeoutMs, v.NotifyTimeoutMsSet, err = nonNegativeInt(section, "notify_timeout_ms"); err != nil {
		return Values{}, err
	}
	if key, kerr := section.GetKey("notify_telegram_chat"); kerr == nil {
		v.NotifyTelegramChat = key.String()
	}
	if key, kerr := section.GetKey("notify_slack_channel"); kerr == nil {
		v.NotifySlackChannel = key.String()
	}
	if key, kerr := section.GetKey("notify_smtp_host"); kerr == nil {
		v.NotifySMTPHost = key.String()
	}
	if v.NotifySMTPPort, v.NotifySMTPPortSet, err = nonNegativeInt(section, "notify_smtp_port"); err != nil {
		return Values{}, err
	}
	if key, kerr := section.GetKey("notify_smtp_username"); kerr == nil {
		v.NotifySMTPUsername = key.String()
	}
	if v.NotifySMTPStartTLS, v.NotifySMTPStartTLSSet, err = boolKey(section, "notify_smtp_starttls"); err != nil {
		return Values{}, err
	}
	if key, kerr := section.GetKey("notify_email_from"); kerr == nil {
		v.NotifyEmailFrom = key.String()
	}
	v.NotifyEmailTo = list(section, "notify_email_to")
	v.NotifyWebhookURLs = list(section, "notify_webhook_urls")
	if key, kerr := section.GetKey("notify_custom_script"); kerr == nil {
		v.NotifyCustomScript = expandTilde(key.String())
	}

	if v.Backends, err = parseBackends(cfg); err != nil {
		return Values{}, err
	}
	return v, nil
}

// parseBackends reads the ordered backends key and a [backend.<name>] section per name.
func parseBackends(cfg *ini.File) ([]BackendValues, error) {
	names := list(cfg.Section(""), "backends")
	if len(names) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(names))
	res := make([]BackendValues, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("backend %q listed twice", name)
		}
		seen[name] = true

		sec, err := cfg.GetSection(backendSectionPrefix + name)
		if err != nil {
			return nil, fmt.Errorf("backend %q has no [%s%s] section", name, backendSectionPrefix, name)
		}
		bv := BackendValues{
			Name:          name,
			Kind:          strings.ToLower(strings.TrimSpace(sec.Key("kind").String())),
			Endpoint:      sec.Key("endpoint").String(),
			Model:         sec.Key("model").String(),
			APIKeyEnv:     sec.Key("api_key_env").String(),
			Command:       sec.Key("command").String(),
			ErrorPatterns: list(sec, "error_patterns"),
		}
		if args := strings.Fields(sec.Key("args").String()); len(args) > 0 {
			bv.Args = args
		}
		if bv.Kind == "" {
			return nil, fmt.Errorf("backend %q: kind is required", name)
		}
		if bv.MaxOutput, _, err = nonNegativeInt(sec, "max_output"); err != nil {
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}
		if bv.TimeoutMs, _, err = nonNegativeInt(sec, "timeout_ms"); err != nil {
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}
		res = append(res, bv)
	}
	return res, nil
}

// expandTilde replaces a leading ~/ with the user's home directory.
func expandTilde(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// nonNegativeInt reads an optional non-negative int key.
func nonNegativeInt(section *ini.Section, name string) (val int, set bool, err error) {
	key, kerr := section.GetKey(name)
	if kerr != nil {
		return 0, false, nil
	}
	val, err = key.Int()
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	if val < 0 {
		return 0, false, fmt.Errorf("invalid %s: must be non-negative, got %d", name, val)
	}
	return val, true, nil
}

func boolKey(section *ini.Section, name string) (val, set bool, err error) {
	key, kerr := section.GetKey(name)
	if kerr != nil {
		return false, false, nil
	}
	val, err = key.Bool()
	if err != nil {
		return false, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return val, true, nil
}

// list reads a comma-separated key, dropping blanks.
func list(section *ini.Section, name string) []string {
	key, err := section.GetKey(name)
	if err != nil {
		return nil
	}
	var res []string
	for p := range strings.SplitSeq(key.String(), ",") {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// mergeFrom merges set values from src into dst. a non-empty backend list replaces the whole list.
//
//nolint:gocyclo // flat list of fields
func (dst *Values) mergeFrom(src *Values) {
	if len(src.Backends) > 0 {
		dst.Backends = src.Backends
	}
	if src.MaxLinesSet {
		dst.MaxLines, dst.MaxLinesSet = src.MaxLines, true
	}
	if src.DensityThresholdSet {
		dst.DensityThreshold, dst.DensityThresholdSet = src.DensityThreshold, true
	}
	if src.PadGlyph != "" {
		dst.PadGlyph = src.PadGlyph
	}
	if src.KakaoSendURL != "" {
		dst.KakaoSendURL = src.KakaoSendURL
	}
	if src.KakaoTokenURL != "" {
		dst.KakaoTokenURL = src.KakaoTokenURL
	}
	if src.KakaoLinkURL != "" {
		dst.KakaoLinkURL = src.KakaoLinkURL
	}
	if src.KakaoTimeoutMsSet {
		dst.KakaoTimeoutMs, dst.KakaoTimeoutMsSet = src.KakaoTimeoutMs, true
	}
	if src.RefreshTimeoutMsSet {
		dst.RefreshTimeoutMs, dst.RefreshTimeoutMsSet = src.RefreshTimeoutMs, true
	}
	if src.JournalFileSet {
		dst.JournalFile, dst.JournalFileSet = src.JournalFile, true
	}
	if src.NotifyChannelsSet {
		dst.NotifyChannels, dst.NotifyChannelsSet = src.NotifyChannels, true
	}
	if src.NotifyOnFailureSet {
		dst.NotifyOnFailure, dst.NotifyOnFailureSet = src.NotifyOnFailure, true
	}
	if src.NotifyOnDeliveredSet {
		dst.NotifyOnDelivered, dst.NotifyOnDeliveredSet = src.NotifyOnDelivered, true
	}
	if src.NotifyTimeoutMsSet {
		dst.NotifyTimeoutMs, dst.NotifyTimeoutMsSet = src.NotifyTimeoutMs, true
	}
	if src.NotifyTelegramChat != "" {
		dst.NotifyTelegramChat = src.NotifyTelegramChat
	}
	if src.NotifySlackChannel != "" {
		dst.NotifySlackChannel = src.NotifySlackChannel
	}
	if src.NotifySMTPHost != "" {
		dst.NotifySMTPHost = src.NotifySMTPHost
	}
	if src.NotifySMTPPortSet {
		dst.NotifySMTPPort, dst.NotifySMTPPortSet = src.NotifySMTPPort, true
	}
	if src.NotifySMTPUsername != "" {
		dst.NotifySMTPUsername = src.NotifySMTPUsername
	}
	if src.NotifySMTPStartTLSSet {
		dst.NotifySMTPStartTLS, dst.NotifySMTPStartTLSSet = src.NotifySMTPStartTLS, true
	}
	if src.NotifyEmailFrom != "" {
		dst.NotifyEmailFrom = src.NotifyEmailFrom
	}
	if len(src.NotifyEmailTo) > 0 {
		dst.NotifyEmailTo = src.NotifyEmailTo
	}
	if len(src.NotifyWebhookURLs) > 0 {
		dst.NotifyWebhookURLs = src.NotifyWebhookURLs
	}
	if src.NotifyCustomScript != "" {
		dst.NotifyCustomScript = src.NotifyCustomScript
	}
}

// Package main provides t3xtart - text art generation delivered to KakaoTalk memo.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/t3xtart/pkg/auth"
	"github.com/umputun/t3xtart/pkg/backend"
	"github.com/umputun/t3xtart/pkg/config"
	"github.com/umputun/t3xtart/pkg/delivery"
	"github.com/umputun/t3xtart/pkg/kakao"
	"github.com/umputun/t3xtart/pkg/notify"
	"github.com/umputun/t3xtart/pkg/pipeline"
	"github.com/umputun/t3xtart/pkg/progress"
	"github.com/umputun/t3xtart/pkg/server"
)

// opts holds all command-line options.
type opts struct {
	ConfigDir string `long:"config-dir" env:"T3XTART_CONFIG_DIR" description:"config directory (default ~/.config/t3xtart)"`
	Debug     bool   `short:"d" long:"debug" description:"enable debug logging"`
	NoColor   bool   `long:"no-color" description:"disable color output"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`

	Serve  serveCmd  `command:"serve" description:"serve the render_and_send tool over HTTP (default)"`
	Render renderCmd `command:"render" description:"run a single request and print its status"`
}

type serveCmd struct {
	Address string `short:"a" long:"address" env:"T3XTART_ADDRESS" default:":8080" description:"listen address"`
}

type renderCmd struct {
	Container string `short:"c" long:"container" description:"file with already generated plan and art, - for stdin"`
	Args      struct {
		Request string `positional-arg-name:"request" description:"what to draw"`
	} `positional-args:"yes"`
}

var revision = "unknown"

// secrets are read from the environment only, never from config files.
type secrets struct {
	AccessToken   string
	RefreshToken  string
	ClientID      string
	ClientSecret  string
	TelegramToken string
	SlackToken    string
	SMTPPassword  string
}

func loadSecrets(getenv func(string) string) secrets {
	return secrets{
		AccessToken:   getenv("KAKAO_ACCESS_TOKEN"),
		RefreshToken:  getenv("KAKAO_REFRESH_TOKEN"),
		ClientID:      getenv("KAKAO_CLIENT_ID"),
		ClientSecret:  getenv("KAKAO_CLIENT_SECRET"),
		TelegramToken: getenv("NOTIFY_TELEGRAM_TOKEN"),
		SlackToken:    getenv("NOTIFY_SLACK_TOKEN"),
		SMTPPassword:  getenv("NOTIFY_SMTP_PASSWORD"),
	}
}

// values returns all non-empty secrets, used to mask them in logs.
func (s secrets) values() []string {
	var res []string
	for _, v := range []string{s.AccessToken, s.RefreshToken, s.ClientSecret, s.TelegramToken, s.SlackToken, s.SMTPPassword} {
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}

func main() {
	fmt.Printf("t3xtart %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		os.Exit(0)
	}

	command := "serve"
	if parser.Active != nil {
		command = parser.Active.Name
	}

	// setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, command); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts, command string) error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sec := loadSecrets(os.Getenv)
	log := setupLog(o.Debug, sec.values()...)

	journal, err := progress.New(progress.Config{Path: cfg.JournalFile, NoColor: o.NoColor, Colors: &cfg.Colors})
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer journal.Close()

	gens, descs, err := buildGenerators(ctx, cfg.Backends, os.Getenv, log)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		return errors.New("no usable backends configured")
	}

	notifier, err := notify.New(notifyParams(cfg, sec), log)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	p := pipeline.New(pipeline.Params{
		Generator:  backend.NewOrchestrator(gens, cfg.Instruction, log),
		Normalizer: cfg.Normalizer(),
		Deliverer:  newCoordinator(cfg, sec, log),
		Notifier:   notifier,
		Journal:    journal,
		Log:        log,
	})
	candidates := backend.NewCandidates(descs...)

	if command == "render" {
		return render(ctx, p, candidates, o.Render, os.Stdin, os.Stdout)
	}

	restore := disableCtrlCEcho()
	defer restore()

	fmt.Printf("backends: %s\n", backendNames(descs))
	if path := journal.Path(); path != "" {
		fmt.Printf("journal: %s\n", path)
	}
	srv := server.NewServer(server.Config{Address: o.Serve.Address, Version: revision, Instruction: cfg.Instruction},
		p, candidates, log)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// setupLog makes the application logger, secrets are masked in every line.
func setupLog(debug bool, secretValues ...string) lgr.L {
	options := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.Secret(secretValues...)}
	if debug {
		options = append(options, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	return lgr.New(options...)
}

// newCoordinator wires the credential proxy and the kakao client.
func newCoordinator(cfg *config.Config, sec secrets, log lgr.L) *delivery.Coordinator {
	refresher := &auth.OAuthRefresher{TokenURL: cfg.KakaoTokenURL, ClientID: sec.ClientID, ClientSecret: sec.ClientSecret}
	cred := auth.NewCredential(sec.AccessToken, sec.RefreshToken, refresher, cfg.RefreshTimeout())
	client := kakao.NewClient(cfg.KakaoSendURL, cfg.KakaoLinkURL, cfg.KakaoTimeout())
	return delivery.NewCoordinator(auth.NewProxy(cred, log), client, log)
}

// buildGenerators makes a generator per configured backend. backends missing their api key
// are skipped with a warning, the returned descriptors keep the configured order.
func buildGenerators(ctx context.Context, backends []config.BackendValues, getenv func(string) string,
	log lgr.L) (map[string]backend.Generator, []backend.Descriptor, error) {
	gens := make(map[string]backend.Generator, len(backends))
	descs := make([]backend.Descriptor, 0, len(backends))
	all := (&config.Config{Values: config.Values{Backends: backends}}).Descriptors()

	for i, b := range backends {
		key := ""
		if b.APIKeyEnv != "" {
			key = getenv(b.APIKeyEnv)
		}

		var gen backend.Generator
		switch backend.Kind(b.Kind) {
		case backend.KindContainer:
			gen = backend.Container{}
		case backend.KindCommand:
			gen = &backend.Command{Name: b.Command, Args: b.Args, ErrorPatterns: b.ErrorPatterns}
		case backend.KindOpenAI:
			if b.APIKeyEnv != "" && key == "" {
				log.Logf("[WARN] backend %s skipped, %s is not set", b.Name, b.APIKeyEnv)
				continue
			}
			gen = &backend.OpenAI{Endpoint: b.Endpoint, Model: b.Model, APIKey: key}
		case backend.KindGemini:
			if key == "" {
				log.Logf("[WARN] backend %s skipped, api key is not set", b.Name)
				continue
			}
			g, err := backend.NewGemini(ctx, key, b.Endpoint, b.Model)
			if err != nil {
				return nil, nil, fmt.Errorf("backend %s: %w", b.Name, err)
			}
			gen = g
		default:
			return nil, nil, fmt.Errorf("backend %s: unknown kind %q", b.Name, b.Kind)
		}

		gens[b.Name] = gen
		descs = append(descs, all[i])
	}
	return gens, descs, nil
}

func notifyParams(cfg *config.Config, sec secrets) notify.Params {
	return notify.Params{
		Channels:      cfg.NotifyChannels,
		OnFailure:     cfg.NotifyOnFailure,
		OnDelivered:   cfg.NotifyOnDelivered,
		TimeoutMs:     cfg.NotifyTimeoutMs,
		TelegramToken: sec.TelegramToken,
		TelegramChat:  cfg.NotifyTelegramChat,
		SlackToken:    sec.SlackToken,
		SlackChannel:  cfg.NotifySlackChannel,
		SMTPHost:      cfg.NotifySMTPHost,
		SMTPPort:      cfg.NotifySMTPPort,
		SMTPUsername:  cfg.NotifySMTPUsername,
		SMTPPassword:  sec.SMTPPassword,
		SMTPStartTLS:  cfg.NotifySMTPStartTLS,
		EmailFrom:     cfg.NotifyEmailFrom,
		EmailTo:       cfg.NotifyEmailTo,
		WebhookURLs:   cfg.NotifyWebhookURLs,
		CustomScript:  cfg.NotifyCustomScript,
	}
}

// render runs one request and prints its status as JSON. a failed status is returned as error.
func render(ctx context.Context, r server.Runner, candidates backend.Candidates, cmd renderCmd,
	stdin io.Reader, stdout io.Writer) error {
	prefilled, err := readContainer(cmd.Container, stdin)
	if err != nil {
		return err
	}

	st := r.Run(ctx, backend.Request{Subject: cmd.Args.Request, Prefilled: prefilled, Candidates: candidates.All()})
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if !st.Delivered() {
		return fmt.Errorf("%s: %s", st.Message, st.Reason)
	}
	return nil
}

// readContainer reads prefilled text from a file, or stdin for "-". empty path means none.
func readContainer(path string, stdin io.Reader) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path) //nolint:gosec // path from command line
		if err != nil {
			return "", fmt.Errorf("read container file: %w", err)
		}
		return string(data), nil
	}
}

func backendNames(descs []backend.Descriptor) string {
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}

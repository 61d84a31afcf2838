package main

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/redis/go-redis/v9"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"optimus/internal/action"
	"optimus/internal/audio"
	"optimus/internal/brain"
	"optimus/internal/config"
	"optimus/internal/desktop"
	"optimus/internal/hud"
	"optimus/internal/ipc"
	"optimus/internal/lang"
	"optimus/internal/logging"
	"optimus/internal/memory"
	"optimus/internal/notify"
	"optimus/internal/proxy"
	"optimus/internal/session"
	"optimus/internal/tts"
	"optimus/internal/youtube"
	"optimus/pkg/stt"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "optimus.yaml", "Config file path")
	logLevel := cli.StringP("log", "l", "", "Log level (debug, info, warn, error)")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address")
	listenFiles := cli.StringSlice("listen-file", nil, "Replay audio files instead of the microphone")
	scanApps := cli.Bool("scan-apps", false, "Print the application index and exit")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "optimus:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}

	logCloser := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer logCloser.Close()

	if *scanApps {
		for _, a := range desktop.ScanSystem().Apps() {
			fmt.Printf("%-40s %v\n", a.Name, a.Exec)
		}
		return
	}

	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *listenFiles); err != nil {
		log.Error("Daemon stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, listenFiles []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, cfg.GetLLMTimeout()+10*time.Second)
	if err != nil {
		return fmt.Errorf("proxy %s: %w", cfg.Proxy, err)
	}
	log.Debug("Loaded http client", "proxy", cfg.Proxy)

	store, closeStore, err := openStore(cfg.Memory)
	if err != nil {
		return err
	}
	defer closeStore()

	history, err := memory.Open(ctx, store)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	log.Debug("Loaded memory", "backend", cfg.Memory.Backend, "turns", history.Len())

	browser := desktop.Browser{}
	liked := youtube.Disabled()
	if cfg.YouTube.Enabled {
		authCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		liked = youtube.Connect(authCtx, youtube.Config{
			SecretPath:  cfg.YouTube.SecretPath,
			TokenPath:   cfg.YouTube.TokenPath,
			Interactive: cfg.YouTube.Interactive,
			CacheTTL:    cfg.GetCacheTTL(),
			HTTPClient:  httpClient,
			Open:        browser.Open,
		})
		cancel()
	}
	log.Debug("Loaded youtube client", "authorized", liked.Authorized())

	executor := action.NewExecutor(
		desktop.NewLauncher(),
		browser,
		youtube.NewWebPlayer(httpClient, browser),
		liked,
	)

	client := openai.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
		option.WithBaseURL(cfg.LLM.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	engine := brain.NewEngine(brain.NewOpenAIChat(client, cfg.LLM.Model), history, executor, brain.Config{
		Name:          cfg.Assistant.Name,
		HistoryWindow: cfg.LLM.HistoryWindow,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		Timeout:       cfg.GetLLMTimeout(),
	})

	mic, closeMic, err := openMicrophone(listenFiles)
	if err != nil {
		return err
	}
	defer closeMic()
	log.Debug("Loaded microphone", "files", len(listenFiles))

	whisper, err := stt.NewTranscriber(cfg.STT.Model, stt.Options{
		Threads:       cfg.STT.Threads,
		InitialPrompt: cfg.Assistant.Name,
	})
	if err != nil {
		return fmt.Errorf("init whisper: %w", err)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper", "model", cfg.STT.Model)

	speaker := tts.NewSpeaker()
	var ducker tts.Ducker
	if cfg.Speech.Duck {
		ducker = audio.NewDucker([]string{"optimus-daemon"}, 5)
	}
	voice := tts.NewVoice(tts.Espeak{Bin: cfg.Speech.Espeak, Speed: cfg.Speech.Speed}, speaker, ducker, tts.VoiceConfig{
		DuckFactor: cfg.Speech.DuckFactor,
		DuckFade:   300 * time.Millisecond,
	})

	ctrl := session.NewController(mic, whisper, engine, voice, session.Config{
		WakeWord: cfg.Assistant.WakeWord,
		Ack:      cfg.Assistant.Ack,
		Voices:   cfg.Voices(),
		Language: cfg.Language(),
	})
	defer ctrl.Wait()

	log.Info("Boot up - successful", "lang", ctrl.Language(), "model", cfg.LLM.Model)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ipc.Serve(gctx, cfg.IPC.Socket, controlHandler(ctrl))
	})

	notifier := notify.New(cfg.Notify.Chime, speaker, cfg.Notify.Desktop)
	g.Go(func() error {
		notifier.Follow(gctx, ctrl.Watch())
		return nil
	})

	if cfg.HUD.URL != "" {
		feed := hud.NewFeed(cfg.HUD.URL, cfg.GetHUDReconnect(), ctrl)
		g.Go(func() error {
			return feed.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("Shutting down")
	return err
}

func openStore(cfg config.MemoryConfig) (memory.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return memory.NewRedisStore(rdb, cfg.Session), func() { rdb.Close() }, nil
	case "file":
		return memory.NewFileStore(cfg.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

func openMicrophone(files []string) (session.Microphone, func(), error) {
	if len(files) > 0 {
		fm := audio.NewFileMicrophone(files...)
		return session.MicrophoneFunc(func() (session.Capture, error) {
			s, err := fm.Open()
			if err != nil {
				return nil, err
			}
			return s, nil
		}), func() {}, nil
	}

	mic := audio.NewMicrophone()
	if err := mic.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}
	return session.MicrophoneFunc(func() (session.Capture, error) {
		s, err := mic.Open()
		if err != nil {
			return nil, err
		}
		return s, nil
	}), mic.Terminate, nil
}

func controlHandler(ctrl *session.Controller) ipc.Handler {
	return func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			if !ctrl.Trigger() {
				return ipc.Reply{OK: true, Message: "already listening"}
			}
			return ipc.Reply{OK: true, Message: "listening"}

		case ipc.CmdLang:
			mode, err := lang.Parse(msg.Arg)
			if err != nil {
				return ipc.Reply{Message: err.Error()}
			}
			ctrl.SetLanguage(mode)
			return ipc.Reply{OK: true, Message: mode.Name()}

		case ipc.CmdStatus:
			s := ctrl.Snapshot()
			return ipc.Reply{OK: true, Message: fmt.Sprintf("%s (%s)", s.Status, s.Language)}

		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Message: "unknown command " + msg.Cmd}
		}
	}
}

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/eventlog"
	"github.com/hablaconmigo/backend/internal/httpapi"
	"github.com/hablaconmigo/backend/internal/jobs"
	"github.com/hablaconmigo/backend/internal/voice"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool // nil when DATABASE_URL is unset
	eventLog *eventlog.Logger

	httpClient *http.Client // Shared HTTP client with connection pooling for the speech service
	speech     *voice.Client
	monitor    *voice.Monitor
	gateway    *voice.Gateway

	cards    *catalog.Catalog
	sessions *httpapi.SessionRegistry
	expiry   *jobs.SessionExpiryJob
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		db = pool
	} else {
		logger.Println("app: DATABASE_URL not set, session events will not be stored")
	}

	// Migrations are normally applied by the deploy job; AUTO_MIGRATE runs
	// them here for local setups.
	if db != nil && cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := Migrate(ctx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	el := eventlog.New(db)

	if cfg.JWTSecret == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
		cfg.JWTSecret = secret
		logger.Println("app: JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	httpClient := NewHTTPClient()
	speech := voice.NewClient(voice.ClientConfig{BaseURL: cfg.VoiceAPIURL, HTTPClient: httpClient})
	monitor := voice.NewMonitor(speech, logger, cfg.HealthInterval, cfg.HealthTimeout)
	gateway := voice.NewGateway(voice.GatewayConfig{
		Synthesizer: speech,
		Transcriber: speech,
		Logger:      logger,
	})

	// Connectivity transitions are stored under a fixed pseudo-session so
	// outages can be lined up against practice sessions afterwards.
	monitor.OnChange(func(connected bool) {
		event := eventlog.EventVoiceLost
		if connected {
			event = eventlog.EventVoiceConnected
		}
		el.LogAsync(voiceServiceSessionID, event, map[string]any{"url": cfg.VoiceAPIURL})
	})

	sessions := httpapi.NewSessionRegistry(cfg.SessionTTL)
	expiry := jobs.NewSessionExpiryJob(sessions, el, cfg.EventRetention, logger, cfg.SweepInterval)

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		eventLog:   el,
		httpClient: httpClient,
		speech:     speech,
		monitor:    monitor,
		gateway:    gateway,
		cards:      catalog.Default(),
		sessions:   sessions,
		expiry:     expiry,
	}, nil
}

const voiceServiceSessionID = "voice-service"

// NewHTTPClient returns the pooled client used for speech service calls.
// Synthesis and transcription requests go to a single host, so idle
// connections are kept warm to cut per-request latency.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // speech service is single host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret:     a.cfg.JWTSecret,
		SessionTTL:    a.cfg.SessionTTL,
		HintDelay:     a.cfg.HintDelay,
		SpeechTimeout: a.cfg.SpeechTimeout,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.cards, a.gateway, a.monitor, a.eventLog, a.sessions)
}

// Start launches the background workers: the speech service health monitor
// and the idle session sweeper.
func (a *App) Start() {
	a.monitor.Start()
	a.expiry.Start()
}

// Drain stops accepting new sessions so /readyz reports 503 and load
// balancers move traffic away.
func (a *App) Drain() {
	a.sessions.StartDraining()
	a.logger.Printf("app: draining, %d active sessions", a.sessions.ActiveCount())
}

// Shutdown waits for active sessions to finish until ctx expires, then
// force-closes the rest.
func (a *App) Shutdown(ctx context.Context) {
	a.sessions.StartDraining()

	done := make(chan struct{})
	go func() {
		a.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		n := a.sessions.CloseAll()
		a.logger.Printf("app: closed %d sessions at shutdown", n)
		<-done
	}
}

func (a *App) Close() error {
	a.expiry.Stop()
	a.monitor.Stop()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

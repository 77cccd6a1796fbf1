// Practica runs a flashcard session in the terminal, using the local
// microphone and speakers for voice answers and spoken feedback.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hablaconmigo/backend/internal/app"
	"github.com/hablaconmigo/backend/internal/audio/device"
	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/notify"
	"github.com/hablaconmigo/backend/internal/voice"
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()
	cfg := app.LoadConfigFromEnv()

	logger := log.New(os.Stderr, "", log.Ltime)

	if err := device.Initialize(); err != nil {
		logger.Fatalf("audio init: %v", err)
	}
	defer device.Terminate()

	speech := voice.NewClient(voice.ClientConfig{BaseURL: cfg.VoiceAPIURL, HTTPClient: app.NewHTTPClient()})
	gateway := voice.NewGateway(voice.GatewayConfig{
		Synthesizer: speech,
		Transcriber: speech,
		Source:      device.NewRecorder(),
		Player:      device.NewPlayer(),
		Logger:      logger,
	})

	notes := notify.New(cfg.Notify)
	monitor := voice.NewMonitor(speech, logger, cfg.HealthInterval, cfg.HealthTimeout)

	// The first probe only sets the baseline; later flips are announced.
	seen := false
	monitor.OnChange(func(connected bool) {
		first := !seen
		seen = true
		switch {
		case !connected:
			notes.Disconnected()
		case !first:
			notes.Reconnected()
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Probe once up front so the first exercise already knows whether to speak.
	monitor.Check(ctx)
	monitor.Start()
	defer monitor.Stop()

	d := newDriver(ctx, driverConfig{
		Speech:     gateway,
		Mic:        gateway,
		Voice:      monitor,
		Notes:      notes,
		Out:        os.Stdout,
		Logger:     logger,
		CaptureMax: cfg.CaptureMax,
		HintDelay:  cfg.HintDelay,
	}, catalog.Default())

	if err := d.run(os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("practica: %v", err)
	}
}

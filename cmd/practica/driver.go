package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/exercise"
	"github.com/hablaconmigo/backend/internal/voice"
)

const hintDelay = 800 * time.Millisecond

// speaker plays synthesized speech on the local output device.
type speaker interface {
	Speak(ctx context.Context, text string) error
}

// microphone records one answer and transcribes it.
type microphone interface {
	CaptureSpeech(ctx context.Context, maxDuration time.Duration) (string, error)
	StopCapture()
}

type connectivity interface {
	Err() error
}

type notifier interface {
	Completed(score, total int)
	Error(msg string)
}

// driver runs one practice session in the terminal. Every runner event is
// funneled through a channel so output is written from a single goroutine.
type driver struct {
	cards      *catalog.Catalog
	runner     *exercise.Runner
	speech     speaker
	mic        microphone
	voice      connectivity
	notes      notifier
	out        io.Writer
	logger     *log.Logger
	captureMax time.Duration
	hintDelay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	events chan exercise.Event
	msgs   chan string
	wg     sync.WaitGroup
}

type driverConfig struct {
	Speech     speaker
	Mic        microphone
	Voice      connectivity
	Notes      notifier
	Out        io.Writer
	Logger     *log.Logger
	CaptureMax time.Duration
	HintDelay  time.Duration // negative disables automatic hints
	Clock      exercise.Clock
}

func newDriver(ctx context.Context, cfg driverConfig, cards *catalog.Catalog) *driver {
	ctx, cancel := context.WithCancel(ctx)
	d := &driver{
		cards:      cards,
		speech:     cfg.Speech,
		mic:        cfg.Mic,
		voice:      cfg.Voice,
		notes:      cfg.Notes,
		out:        cfg.Out,
		logger:     cfg.Logger,
		captureMax: cfg.CaptureMax,
		hintDelay:  cfg.HintDelay,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan exercise.Event, 64),
		msgs:       make(chan string, 16),
	}
	if d.hintDelay == 0 {
		d.hintDelay = hintDelay
	}
	clock := cfg.Clock
	if clock == nil {
		clock = exercise.SystemClock()
	}
	d.runner = exercise.NewRunner(cards,
		exercise.WithClock(clock),
		exercise.WithListener(func(ev exercise.Event) {
			select {
			case d.events <- ev:
			default:
				d.logger.Printf("practica: dropped %s event", ev.Type)
			}
		}),
		exercise.WithFeedback(exercise.FeedbackFunc(func(phrase string) {
			d.goSpeak(phrase)
		})),
	)
	return d
}

// run reads commands from in until q, end of input, ctx cancellation or the
// end of the session.
func (d *driver) run(in io.Reader) error {
	graceful := false
	defer func() { d.shutdown(graceful) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-d.ctx.Done():
				return
			}
		}
	}()

	d.printHelp()
	d.runner.Start()

	for {
		select {
		case <-d.ctx.Done():
			return d.ctx.Err()
		case msg := <-d.msgs:
			fmt.Fprintln(d.out, msg)
		case ev := <-d.events:
			if done := d.render(ev); done {
				graceful = true
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := d.handle(line); quit {
				return nil
			}
		}
	}
}

// shutdown stops the session. A graceful shutdown lets the closing praise
// finish playing; otherwise audio in flight is cancelled.
func (d *driver) shutdown(graceful bool) {
	if !graceful {
		d.cancel()
	}
	d.mic.StopCapture()
	d.runner.Close()
	d.wg.Wait()
	d.cancel()
}

// handle executes one command line. It returns true when the user quits.
func (d *driver) handle(line string) bool {
	switch line {
	case "":
		return false
	case "q", "salir":
		return true
	case "v":
		d.startCapture()
	case "s":
		d.mic.StopCapture()
	case "h":
		d.goSpeak(d.runner.Current().Hint)
	case "?":
		d.printHelp()
	default:
		n, err := strconv.Atoi(line)
		card := d.runner.Current()
		if err != nil || n < 1 || n > len(card.Choices) {
			fmt.Fprintf(d.out, "No entiendo %q. Escribe ? para ver las opciones.\n", line)
			return false
		}
		if _, accepted := d.runner.SubmitChoice(card.Choices[n-1]); !accepted {
			fmt.Fprintln(d.out, "Espera un momento...")
		}
	}
	return false
}

func (d *driver) startCapture() {
	if err := d.voice.Err(); err != nil {
		fmt.Fprintln(d.out, voice.Message(err))
		return
	}
	if err := d.runner.BeginCapture(); err != nil {
		fmt.Fprintln(d.out, voice.Message(voice.ErrCaptureActive))
		return
	}
	fmt.Fprintln(d.out, "Te escucho... (s para terminar)")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		transcript, err := d.mic.CaptureSpeech(d.ctx, d.captureMax)
		d.runner.EndCapture()
		if err != nil {
			d.report(voice.Message(err))
			return
		}
		d.report(fmt.Sprintf("Escuché: %q", transcript))
		if _, accepted := d.runner.SubmitTranscript(transcript); !accepted {
			d.report("Espera un momento...")
		}
	}()
}

// goSpeak plays text in the background. Nothing is spoken while the speech
// service is unreachable.
func (d *driver) goSpeak(text string) {
	if text == "" || d.voice.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runner.SetSpeaking(true)
		defer d.runner.SetSpeaking(false)
		if err := d.speech.Speak(d.ctx, text); err != nil && d.ctx.Err() == nil {
			msg := voice.Message(err)
			d.report(msg)
			d.notes.Error(msg)
		}
	}()
}

// report hands a line to the output goroutine without blocking the caller.
func (d *driver) report(msg string) {
	select {
	case d.msgs <- msg:
	default:
		d.logger.Printf("practica: %s", msg)
	}
}

func (d *driver) scheduleHint(index int) {
	if d.hintDelay < 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case <-time.After(d.hintDelay):
		case <-d.ctx.Done():
			return
		}
		st := d.runner.State()
		if st.CurrentIndex != index || st.Status != exercise.StatusWaiting || st.Complete {
			return
		}
		d.goSpeak(d.runner.Current().Hint)
	}()
}

// render prints an event. It returns true once the session is complete.
func (d *driver) render(ev exercise.Event) bool {
	st := ev.State
	switch ev.Type {
	case exercise.EventExerciseStarted:
		card, _ := d.cards.At(st.CurrentIndex)
		fmt.Fprintf(d.out, "\n[%d/%d] %s  ¿Qué es?\n", st.CurrentIndex+1, st.Total, card.Glyph)
		for i, choice := range card.Choices {
			fmt.Fprintf(d.out, "  %d) %s\n", i+1, choice)
		}
		d.scheduleHint(st.CurrentIndex)
	case exercise.EventAnswered:
		if ev.Verdict != nil && *ev.Verdict {
			fmt.Fprintf(d.out, "✓ ¡Correcto! Puntos: %d\n", st.Score)
		} else {
			fmt.Fprintln(d.out, "✗ Inténtalo de nuevo")
		}
	case exercise.EventCompleted:
		fmt.Fprintf(d.out, "\n¡Terminaste! Puntuación: %d de %d\n", st.Score, st.Total*exercise.PointsPerExercise)
		d.notes.Completed(st.Score, st.Total*exercise.PointsPerExercise)
		return true
	}
	return false
}

func (d *driver) printHelp() {
	fmt.Fprintln(d.out, "Comandos: número = elegir respuesta, v = responder con la voz, s = dejar de grabar, h = pista, q = salir")
}

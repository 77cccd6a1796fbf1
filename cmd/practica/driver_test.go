package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/exercise"
	"github.com/hablaconmigo/backend/internal/voice"
)

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	err    error
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return f.err
}

func (f *fakeSpeaker) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

type fakeMic struct {
	transcript string
	err        error
	calls      int
	stops      int
}

func (f *fakeMic) CaptureSpeech(context.Context, time.Duration) (string, error) {
	f.calls++
	return f.transcript, f.err
}

func (f *fakeMic) StopCapture() { f.stops++ }

type fakeVoice struct{ err error }

func (f fakeVoice) Err() error { return f.err }

type fakeNotes struct {
	mu        sync.Mutex
	completed []int
	errors    []string
}

func (f *fakeNotes) Completed(score, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, score, total)
}

func (f *fakeNotes) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

// immediateClock fires every scheduled transition right away.
type immediateClock struct{}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (immediateClock) AfterFunc(_ time.Duration, f func()) exercise.Timer {
	go f()
	return noopTimer{}
}

// stoppedClock never fires, freezing the session after an answer.
type stoppedClock struct{}

func (stoppedClock) AfterFunc(time.Duration, func()) exercise.Timer { return noopTimer{} }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testDriver struct {
	*driver
	speaker *fakeSpeaker
	mic     *fakeMic
	notes   *fakeNotes
	out     *syncBuffer
}

func newTestDriver(t *testing.T, clock exercise.Clock, voiceErr error) *testDriver {
	t.Helper()
	td := &testDriver{
		speaker: &fakeSpeaker{},
		mic:     &fakeMic{transcript: "el aguacate"},
		notes:   &fakeNotes{},
		out:     &syncBuffer{},
	}
	td.driver = newDriver(context.Background(), driverConfig{
		Speech:     td.speaker,
		Mic:        td.mic,
		Voice:      fakeVoice{err: voiceErr},
		Notes:      td.notes,
		Out:        td.out,
		Logger:     log.New(io.Discard, "", 0),
		CaptureMax: time.Second,
		HintDelay:  -1,
		Clock:      clock,
	}, catalog.Default())
	return td
}

func correctChoice(t *testing.T, i int) string {
	t.Helper()
	card, ok := catalog.Default().At(i)
	if !ok {
		t.Fatalf("no card %d", i)
	}
	for n, c := range card.Choices {
		if c == card.CorrectLabel {
			return strconv.Itoa(n + 1)
		}
	}
	t.Fatalf("card %d has no correct choice", i)
	return ""
}

func TestDriverCompletesSession(t *testing.T) {
	td := newTestDriver(t, immediateClock{}, nil)
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- td.run(pr) }()

	total := catalog.Default().Len()
	for i := 0; i < total; i++ {
		if _, err := io.WriteString(pw, correctChoice(t, i)+"\n"); err != nil {
			t.Fatalf("write answer %d: %v", i, err)
		}
		deadline := time.Now().Add(2 * time.Second)
		for {
			st := td.runner.State()
			if st.CurrentIndex > i || st.Complete {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("exercise %d never advanced: %+v", i, st)
			}
			time.Sleep(time.Millisecond)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run() did not return after the last exercise")
	}

	want := total * exercise.PointsPerExercise
	if len(td.notes.completed) != 2 || td.notes.completed[0] != want || td.notes.completed[1] != want {
		t.Errorf("completion notice = %v, want [%d %d]", td.notes.completed, want, want)
	}
	praise := 0
	for _, s := range td.speaker.said() {
		if s == exercise.PraisePhrase {
			praise++
		}
	}
	if praise != total {
		t.Errorf("praise spoken %d times, want %d", praise, total)
	}
	if !strings.Contains(td.out.String(), "¡Terminaste!") {
		t.Errorf("output missing completion line:\n%s", td.out.String())
	}
}

func TestDriverQuit(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, nil)

	if err := td.run(strings.NewReader("q\n")); err != nil {
		t.Errorf("run() error = %v", err)
	}
	if td.mic.stops == 0 {
		t.Error("quitting should release the microphone")
	}
	if _, accepted := td.runner.SubmitChoice("El Aguacate"); accepted {
		t.Error("runner should be closed after quitting")
	}
}

func TestDriverHandle(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"out of range", "9", "No entiendo"},
		{"not a number", "hola", "No entiendo"},
		{"help", "?", "Comandos:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestDriver(t, stoppedClock{}, nil)
			defer td.shutdown(false)

			if quit := td.handle(tt.line); quit {
				t.Fatal("handle() should not quit")
			}
			if !strings.Contains(td.out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", td.out.String(), tt.want)
			}
		})
	}
}

func TestDriverRejectsAnswerWhileShowingVerdict(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, nil)
	defer td.shutdown(false)

	td.handle(correctChoice(t, 0))
	td.handle("1")

	if !strings.Contains(td.out.String(), "Espera un momento") {
		t.Errorf("second answer should be refused, output = %q", td.out.String())
	}
	if st := td.runner.State(); st.Score != exercise.PointsPerExercise {
		t.Errorf("score = %d, want %d", st.Score, exercise.PointsPerExercise)
	}
}

func TestDriverVoiceAnswer(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, nil)
	defer td.shutdown(false)

	td.handle("v")
	td.wg.Wait()

	st := td.runner.State()
	if st.Status != exercise.StatusCorrect || st.MicCapturing {
		t.Errorf("state = %+v, want correct with the mic released", st)
	}
	if got := <-td.msgs; got != `Escuché: "el aguacate"` {
		t.Errorf("report = %q", got)
	}
}

func TestDriverVoiceDisconnected(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, voice.ErrDisconnected)
	defer td.shutdown(false)

	td.handle("v")
	td.handle(correctChoice(t, 0))
	td.wg.Wait()

	if td.mic.calls != 0 {
		t.Error("microphone should not be opened while disconnected")
	}
	if !strings.Contains(td.out.String(), voice.Message(voice.ErrDisconnected)) {
		t.Errorf("output = %q, want disconnected message", td.out.String())
	}
	if len(td.speaker.said()) != 0 {
		t.Error("nothing should be spoken while disconnected")
	}
	if td.runner.State().Score != exercise.PointsPerExercise {
		t.Error("tapping should still work while disconnected")
	}
}

func TestDriverCaptureFailure(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, nil)
	defer td.shutdown(false)
	td.mic.err = &voice.CaptureError{Kind: voice.CaptureEmptyTranscript}

	td.handle("v")
	td.wg.Wait()

	if got := <-td.msgs; got != "No se pudo transcribir el audio" {
		t.Errorf("report = %q", got)
	}
	st := td.runner.State()
	if st.MicCapturing || st.Status != exercise.StatusWaiting {
		t.Errorf("state = %+v, want waiting with the mic released", st)
	}
}

func TestDriverSpeakFailureNotifies(t *testing.T) {
	td := newTestDriver(t, stoppedClock{}, nil)
	defer td.shutdown(false)
	td.speaker.err = &voice.SynthesisError{Reason: "sin voz"}

	td.handle("h")
	td.wg.Wait()

	if len(td.notes.errors) != 1 || td.notes.errors[0] != "sin voz" {
		t.Errorf("error notices = %v, want [sin voz]", td.notes.errors)
	}
	if said := td.speaker.said(); len(said) != 1 || said[0] != catalog.Default().Cards()[0].Hint {
		t.Errorf("spoken = %v, want the first hint", said)
	}
	if td.runner.State().Speaking {
		t.Error("speaking flag should clear after playback")
	}
}

package exercise

// Status is the answer state of the current exercise.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
)

// PointsPerExercise is awarded once for each exercise answered correctly.
const PointsPerExercise = 100

// Session is the transition function of one run through a catalog. It has no
// locking and no timers; Runner adds both.
//
// Score only grows on a Waiting -> Correct transition, so every exercise pays
// out at most once. The index only moves forward when leaving Correct.
type Session struct {
	length int
	index  int
	status Status
	score  int
}

// NewSession starts a session over length exercises at index 0, Waiting.
// A length below 1 is treated as 1.
func NewSession(length int) *Session {
	if length < 1 {
		length = 1
	}
	return &Session{length: length, status: StatusWaiting}
}

// Submit applies a verdict. It is honored only while Waiting; otherwise it
// returns false and changes nothing.
func (s *Session) Submit(verdict bool) bool {
	if s.status != StatusWaiting {
		return false
	}
	if verdict {
		s.status = StatusCorrect
		s.score += PointsPerExercise
	} else {
		s.status = StatusIncorrect
	}
	return true
}

// Advance moves to the next exercise. Valid only from Correct when the
// current exercise is not the last one.
func (s *Session) Advance() bool {
	if s.status != StatusCorrect || s.IsLast() {
		return false
	}
	s.index++
	s.status = StatusWaiting
	return true
}

// Reset lets the child try the same exercise again after a wrong answer.
func (s *Session) Reset() bool {
	if s.status != StatusIncorrect {
		return false
	}
	s.status = StatusWaiting
	return true
}

func (s *Session) Index() int     { return s.index }
func (s *Session) Len() int       { return s.length }
func (s *Session) Status() Status { return s.status }
func (s *Session) Score() int     { return s.score }

// IsLast reports whether the current exercise is the final one.
func (s *Session) IsLast() bool { return s.index == s.length-1 }

// Complete reports whether the final exercise has been answered correctly.
func (s *Session) Complete() bool {
	return s.IsLast() && s.status == StatusCorrect
}

// Progress is the share of the catalog already solved, in percent.
func (s *Session) Progress() float64 {
	done := s.index
	if s.status == StatusCorrect {
		done++
	}
	return float64(done) / float64(s.length) * 100
}

// State is a point-in-time view of a session, including the device flags
// tracked by Runner.
type State struct {
	CurrentIndex int     `json:"current_index"`
	Total        int     `json:"total"`
	Status       Status  `json:"status"`
	Score        int     `json:"score"`
	MicCapturing bool    `json:"mic_capturing"`
	Speaking     bool    `json:"speaking"`
	Complete     bool    `json:"complete"`
	Progress     float64 `json:"progress"`
}

func (s *Session) state() State {
	return State{
		CurrentIndex: s.index,
		Total:        s.length,
		Status:       s.status,
		Score:        s.score,
		Complete:     s.Complete(),
		Progress:     s.Progress(),
	}
}

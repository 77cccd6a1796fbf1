package voice

import (
	"encoding/json"
	"fmt"
	"io"
)

// Result is a speech service reply reduced to success with a payload or
// failure with a reason. Replies are decoded into a Result once, at the
// client boundary; nothing else looks at the wire fields.
type Result struct {
	ok      bool
	payload string
	reason  string
}

func Success(payload string) Result { return Result{ok: true, payload: payload} }
func Failure(reason string) Result  { return Result{reason: reason} }

func (r Result) OK() bool        { return r.ok }
func (r Result) Payload() string { return r.payload }
func (r Result) Reason() string  { return r.reason }

// serviceReply is the JSON envelope shared by /api/hablar and /api/transcribir.
type serviceReply struct {
	Exito bool   `json:"exito"`
	Audio string `json:"audio,omitempty"`
	Texto string `json:"texto,omitempty"`
	Error string `json:"error,omitempty"`
}

// payloadField picks the success payload out of a reply.
type payloadField func(serviceReply) string

func audioField(r serviceReply) string { return r.Audio }
func textField(r serviceReply) string  { return r.Texto }

// decodeResult reads one reply envelope. A reply that is not valid JSON is an
// error; a well-formed reply with exito=false is a Failure.
func decodeResult(body io.Reader, field payloadField, fallback string) (Result, error) {
	var reply serviceReply
	if err := json.NewDecoder(body).Decode(&reply); err != nil {
		return Result{}, fmt.Errorf("malformed reply: %w", err)
	}
	if !reply.Exito {
		reason := reply.Error
		if reason == "" {
			reason = fallback
		}
		return Failure(reason), nil
	}
	return Success(field(reply)), nil
}

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"audio": "Y2xpcA=="}`, ""},
		{"missing", `{}`, "audio is required"},
		{"not base64", `{"audio": "***"}`, "audio must be base64 encoded"},
		{"malformed", `{"audio":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var body voiceAnswerRequest
			err := decodeJSON(httptest.NewRecorder(), req, &body)

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("decodeJSON() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("decodeJSON() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	big := `{"audio": "` + strings.Repeat("A", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var body voiceAnswerRequest
	if err := decodeJSON(httptest.NewRecorder(), req, &body); err != errInvalidBody {
		t.Errorf("decodeJSON() error = %v, want %v", err, errInvalidBody)
	}
}

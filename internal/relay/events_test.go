package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/courierchat/internal/identity"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnauthenticated, CodeUnauthenticated},
		{fmt.Errorf("%w: b@x.com", ErrRecipientOffline), CodeRecipientOffline},
		{fmt.Errorf("%w: tx aborted", ErrPersistence), CodePersistence},
		{ErrRateLimited, CodeRateLimited},
		{ErrSessionActive, CodeSessionActive},
		{identity.ErrInvalidCredential, CodeAuthFailed},
		{errors.New("anything else"), CodeBadRequest},
	}

	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestAuthSuccessFrameShape(t *testing.T) {
	frame := NewAuthSuccess(identity.Identity{ID: "u-1", Email: "a@x.com", Role: "member"})

	payload := marshalFrame(frame)
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]interface{}{
		"type": "auth_success",
		"user": map[string]interface{}{
			"id":    "u-1",
			"email": "a@x.com",
			"role":  "member",
		},
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("auth_success frame mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorFrameFromEngineError(t *testing.T) {
	frame := NewError(fmt.Errorf("%w: ghost@x.com", ErrRecipientOffline))

	if frame.Type != EventError {
		t.Errorf("expected type %q, got %q", EventError, frame.Type)
	}
	if frame.Code != CodeRecipientOffline {
		t.Errorf("expected code %q, got %q", CodeRecipientOffline, frame.Code)
	}
}

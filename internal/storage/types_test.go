package storage

import (
	"encoding/json"
	"testing"
)

func TestSessionStateNormalizesCase(t *testing.T) {
	var state SessionState
	if err := json.Unmarshal([]byte(`"in_session"`), &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state != SessionActive {
		t.Errorf("state = %q, want %q", state, SessionActive)
	}

	if err := json.Unmarshal([]byte(`"AWAY"`), &state); err == nil {
		t.Error("expected error for an unknown session state")
	}
}

func TestAccrualKey(t *testing.T) {
	record := AccrualRecord{GroupID: "g1", MemberID: "m1"}
	if got := record.Key(); got != "g1:m1" {
		t.Errorf("Key() = %q, want g1:m1", got)
	}
	if got := AccrualKey("g1", "m1"); got != record.Key() {
		t.Errorf("AccrualKey = %q, want %q", got, record.Key())
	}
}

package engine

import "testing"

func TestHandshakeStatus_String(t *testing.T) {
	tests := []struct {
		s    HandshakeStatus
		want string
	}{
		{NotHandshaking, "NOT_HANDSHAKING"},
		{NeedWrap, "NEED_WRAP"},
		{NeedUnwrap, "NEED_UNWRAP"},
		{NeedTask, "NEED_TASK"},
		{Finished, "FINISHED"},
		{HandshakeStatus(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("HandshakeStatus(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if HandshakeStatus(42).IsValid() {
		t.Error("HandshakeStatus(42) should be invalid")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusOK, "OK"},
		{StatusBufferUnderflow, "BUFFER_UNDERFLOW"},
		{StatusBufferOverflow, "BUFFER_OVERFLOW"},
		{StatusClosed, "CLOSED"},
		{Status(-1), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestRole(t *testing.T) {
	if !RoleClient.IsValid() || !RoleServer.IsValid() {
		t.Fatal("client and server roles must be valid")
	}
	if RoleUnknown.IsValid() {
		t.Fatal("unknown role must be invalid")
	}
	if RoleServer.String() != "server" {
		t.Fatalf("RoleServer.String() = %q", RoleServer.String())
	}
}

package model

import (
	"testing"
	"time"
)

func TestMessage_DirectionAndPartial(t *testing.T) {
	tests := []struct {
		name          string
		msg           Message
		wantDirection string
		wantPartial   bool
	}{
		{name: "complete inbox", msg: Message{Number: "1", Timestamp: time.Unix(10, 0), Inbox: true}, wantDirection: "inbox"},
		{name: "complete outbound", msg: Message{Number: "1", Timestamp: time.Unix(10, 0)}, wantDirection: "outbound"},
		{name: "no number", msg: Message{Timestamp: time.Unix(10, 0)}, wantDirection: "outbound", wantPartial: true},
		{name: "no timestamp", msg: Message{Number: "1", Inbox: true}, wantDirection: "inbox", wantPartial: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Direction(); got != tt.wantDirection {
				t.Errorf("Direction() = %q, want %q", got, tt.wantDirection)
			}
			if got := tt.msg.Partial(); got != tt.wantPartial {
				t.Errorf("Partial() = %v, want %v", got, tt.wantPartial)
			}
		})
	}
}

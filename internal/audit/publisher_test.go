package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
		want    Event
	}{
		{
			name: "valid",
			values: map[string]interface{}{
				"type":    EventIssued,
				"payload": `{"type":"token.issued","token_prefix":"9944b091","user_id":3,"t":1700000000000}`,
			},
			want: Event{Type: EventIssued, TokenPrefix: "9944b091", UserID: 3, At: 1700000000000},
		},
		{
			name:    "missing payload",
			values:  map[string]interface{}{"type": EventIssued},
			wantErr: true,
		},
		{
			name:    "corrupt payload",
			values:  map[string]interface{}{"payload": "{not json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEvent(tt.values)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeEvent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvent_Time(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	e := Event{At: at.UnixMilli()}
	if !e.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", e.Time(), at)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.PublishAsync(Event{Type: EventIssued})
	r.PublishAsync(Event{Type: EventDeactivated})

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != EventDeactivated {
		t.Errorf("events[1].Type = %q, want %q", events[1].Type, EventDeactivated)
	}
}

func TestRecorder_RecentNewestFirst(t *testing.T) {
	rec := &Recorder{}
	rec.PublishAsync(Event{Type: EventIssued, UserID: 1})
	rec.PublishAsync(Event{Type: EventRefreshed, UserID: 1})
	rec.PublishAsync(Event{Type: EventDeactivated, UserID: 1})

	entries, err := rec.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventDeactivated, entries[0].Event.Type)
	assert.Equal(t, EventRefreshed, entries[1].Event.Type)
}

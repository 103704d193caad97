package core

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name              string
		channelMuted      bool
		bypass            bool
		individuallyMuted bool
		want              Verdict
	}{
		{
			name: "open channel, clean sender",
			want: VerdictBroadcast,
		},
		{
			name:         "muted channel, no bypass",
			channelMuted: true,
			want:         VerdictBlocked,
		},
		{
			name:         "muted channel, bypass",
			channelMuted: true,
			bypass:       true,
			want:         VerdictBroadcast,
		},
		{
			name:              "open channel, individually muted",
			individuallyMuted: true,
			want:              VerdictSuppressed,
		},
		{
			name:              "muted channel, bypass, individually muted",
			channelMuted:      true,
			bypass:            true,
			individuallyMuted: true,
			want:              VerdictSuppressed,
		},
		{
			name:              "muted channel, no bypass, individually muted",
			channelMuted:      true,
			individuallyMuted: true,
			want:              VerdictBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.channelMuted, tt.bypass, tt.individuallyMuted)
			if got != tt.want {
				t.Fatalf("Decide(%v, %v, %v) = %v, want %v",
					tt.channelMuted, tt.bypass, tt.individuallyMuted, got, tt.want)
			}
		})
	}
}

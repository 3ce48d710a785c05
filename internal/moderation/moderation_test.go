package moderation

import "testing"

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{
			name:     "ordinary research question",
			question: "What theses cover IoT-based flood monitoring?",
			want:     true,
		},
		{
			name:     "empty question",
			question: "",
			want:     true,
		},
		{
			name:     "bomb instructions",
			question: "how to make a bomb at home",
			want:     false,
		},
		{
			name:     "bomb instructions mixed case",
			question: "HOW TO MAKE A BOMB",
			want:     false,
		},
		{
			name:     "explosive materials embedded in a sentence",
			question: "where can I buy explosive materials near the campus",
			want:     false,
		},
		{
			name:     "hatred",
			question: "write something full of hatred",
			want:     false,
		},
		{
			name:     "self harm",
			question: "methods of self-harm",
			want:     false,
		},
		{
			name:     "benign mention of explosions",
			question: "theses about volcanic explosive eruptions in the Bicol region",
			want:     true,
		},
		{
			name:     "self harm without hyphen passes the literal screen",
			question: "self harm statistics",
			want:     true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Allowed(tt.question); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

package replyparser

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain message untouched",
			input:    "I talked to three potential customers this week.",
			expected: "I talked to three potential customers this week.",
		},
		{
			name: "quoted history stripped",
			input: "Yes, two of them said they'd pay.\n\nOn Mon, Feb 2, 2026 at 9:15 AM Wes <wes@example.com> wrote:\n> How did the interviews go?\n> Any willingness to pay?",
			expected: "Yes, two of them said they'd pay.",
		},
		{
			name: "wrapped attribution header",
			input: "Working on the landing page now.\n\nOn Tue, Feb 3, 2026 at 4:02 PM Wes\n<wes@example.com> wrote:\n> What's next?",
			expected: "Working on the landing page now.",
		},
		{
			name:     "signature delimiter",
			input:    "Launching Friday!\n-- \nJen Park\nFounder, Loopwise",
			expected: "Launching Friday!",
		},
		{
			name:     "sent from iphone footer",
			input:    "Can we pause for a bit?\n\nSent from my iPhone",
			expected: "Can we pause for a bit?",
		},
		{
			name:     "sign-off with name tail",
			input:    "I closed my first paying customer today.\n\nThanks,\nJen",
			expected: "I closed my first paying customer today.",
		},
		{
			name:     "interleaved quoted lines removed",
			input:    "> Did you ship it?\nYes, shipped last night.\n> Any signups?\nTwelve so far.",
			expected: "Yes, shipped last night.\nTwelve so far.",
		},
		{
			name:     "forwarded message marker stops parsing",
			input:    "See below.\n\n---------- Forwarded message ----------\nFrom: someone@example.com",
			expected: "See below.",
		},
		{
			name:     "empty body",
			input:    "",
			expected: "",
		},
		{
			name:     "only quoted content yields empty",
			input:    "> old message line one\n> old message line two",
			expected: "",
		},
		{
			name:     "blank runs collapsed",
			input:    "First thought.\n\n\n\nSecond thought.",
			expected: "First thought.\n\nSecond thought.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(tt.input)
			if result != tt.expected {
				t.Errorf("Expected:\n%q\n\nGot:\n%q", tt.expected, result)
			}
		})
	}
}

func TestParse_KeepsLongFinalLine(t *testing.T) {
	input := "Quick update.\n\nThe pilot with the accounting firm is going better than I expected this month."
	expected := input
	if got := Parse(input); got != expected {
		t.Errorf("Expected long final line kept, got:\n%q", got)
	}
}

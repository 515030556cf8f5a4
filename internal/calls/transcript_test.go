package calls

import "testing"

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]TranscriptTurn{
		{Role: "agent", Content: "Hi, this is Sam."},
		{Role: "user", Content: "  Hello  "},
		{Role: "user", Content: "   "},
		{Role: "system", Content: "transfer"},
		{Role: "", Content: "???"},
	})
	want := "Agent: Hi, this is Sam.\nUser: Hello\nSystem: transfer\nUnknown: ???"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestFormatTranscript_Empty(t *testing.T) {
	if got := FormatTranscript(nil); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

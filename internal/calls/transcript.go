package calls

import "strings"

// TranscriptTurn is one utterance of a turn-by-turn transcript.
type TranscriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FormatTranscript flattens turns into "Role: content" lines.
func FormatTranscript(turns []TranscriptTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		lines = append(lines, speakerLabel(t.Role)+": "+content)
	}
	return strings.Join(lines, "\n")
}

func speakerLabel(role string) string {
	role = strings.TrimSpace(role)
	switch strings.ToLower(role) {
	case "agent":
		return "Agent"
	case "user":
		return "User"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

package pipeline

import (
	"strings"
	"time"

	"dialer-platform/internal/calls"
)

// Board is a kanban column owned by a user.
type Board struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Position places a lead on a board. At most one row per (lead, board).
type Position struct {
	LeadID      string    `json:"lead_id"`
	BoardID     string    `json:"board_id"`
	UserID      string    `json:"user_id"`
	MovedAt     time.Time `json:"moved_at"`
	MovedByUser bool      `json:"moved_by_user"`
	Notes       string    `json:"notes,omitempty"`
}

const excludedForPositive = "not interested"

// stageCandidates lists board-name substrings per disposition, most preferred first.
var stageCandidates = map[calls.Disposition][]string{
	calls.DispositionAppointmentSet:    {"appointment", "booked", "qualified", "meeting"},
	calls.DispositionInterested:        {"interested", "warm", "hot lead"},
	calls.DispositionCallbackRequested: {"callback", "call back", "follow up", "follow-up"},
	calls.DispositionNotInterested:     {"not interested", "lost"},
	calls.DispositionDNC:               {"do not call", "dnc", "lost"},
	calls.DispositionVoicemail:         {"voicemail", "attempted", "contacted"},
	calls.DispositionNoAnswer:          {"no answer", "attempted", "contacted"},
	calls.DispositionBusy:              {"no answer", "attempted", "contacted"},
	calls.DispositionContacted:         {"contacted"},
	calls.DispositionCompleted:         {"contacted"},
}

func positive(d calls.Disposition) bool {
	switch d {
	case calls.DispositionAppointmentSet, calls.DispositionInterested, calls.DispositionCallbackRequested:
		return true
	}
	return false
}

// MatchBoard picks the target board for d. boards must be ordered by position.
// Candidate order wins over board order.
func MatchBoard(d calls.Disposition, boards []Board) (Board, bool) {
	cands := stageCandidates[d]
	pos := positive(d)
	for _, c := range cands {
		for _, b := range boards {
			name := strings.ToLower(b.Name)
			if pos && strings.Contains(name, excludedForPositive) {
				continue
			}
			if strings.Contains(name, c) {
				return b, true
			}
		}
	}
	return Board{}, false
}

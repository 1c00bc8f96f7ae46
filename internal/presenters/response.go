// Package presenters renders saved answers and bracket events for the
// terminal.
package presenters

import (
	"fmt"
	"strings"

	"github.com/glizzus/readaloud/internal/events"
	"github.com/glizzus/readaloud/internal/repository"
)

const NoResponsesFound = "No responses found."

const timeLayout = "2006-01-02 15:04:05"

func formatResponse(r repository.Response) string {
	heard := r.Transcription
	if heard == "" {
		heard = "(no transcription)"
	}
	return fmt.Sprintf("%d. %s\n   heard: %s\n   bracket %s, %d bytes, %s\n",
		r.QuestionIndex+1, r.Question, heard, r.BracketID, r.WAVBytes, r.RecordedAt.Format(timeLayout))
}

// ResponseList renders one block per answer, in the order given.
func ResponseList(responses []repository.Response) string {
	if len(responses) == 0 {
		return NoResponsesFound + "\n"
	}

	var b strings.Builder
	for _, r := range responses {
		b.WriteString(formatResponse(r))
	}
	return b.String()
}

// EventLine renders an event on a single line.
func EventLine(e events.BracketEvent) string {
	line := fmt.Sprintf("%s %s user=%s question=%d %s",
		e.At.Format(timeLayout), e.BracketID, e.UserID, e.QuestionIndex+1, e.Outcome)
	switch {
	case e.Error != "":
		line += ": " + e.Error
	case e.Transcription != "":
		line += fmt.Sprintf(": %q", e.Transcription)
	}
	return line
}

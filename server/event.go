package server

import (
	"github.com/google/uuid"
	"github.com/nixxel-company-limited/escpos-bt-server/escpos"
)

// Event payload types
const (
	EventText = "text"
	EventJSON = "json"
)

// Event is a print request raised inside the process
type Event struct {
	// Type is EventText (the default when empty) or EventJSON
	Type string
	Data string
}

// Submit prints ev in the background. The outcome is only logged. It
// reports false when ev carries no data and nothing was queued.
func (s *Server) Submit(ev Event) bool {
	if ev.Data == "" {
		return false
	}

	jobID := uuid.NewString()
	s.wg.Go(func() {
		if err := s.printEvent(jobID, ev); err != nil {
			s.logger.Printf("[%s] Print failed: %v", jobID, err)
		}
	})
	return true
}

func (s *Server) printEvent(jobID string, ev Event) error {
	enc := escpos.NewEncoder().Init()

	if ev.Type == EventJSON {
		s.translator.Translate([]byte(ev.Data), enc)
	} else {
		enc.Text(ev.Data).LineBreak()
	}

	s.logger.Printf("[%s] Event job of type %q", jobID, ev.Type)
	return s.finish(jobID, enc)
}

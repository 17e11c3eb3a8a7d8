package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LineReader supplies user input one line at a time; io.EOF ends the
// session.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Renderer displays outcomes. Formatting is entirely up to the renderer.
type Renderer interface {
	Render(Outcome)
	// Reset clears the display.
	Reset()
}

// Session owns the transcript and drives the read/dispatch/render loop.
// Input is handled strictly one line at a time, so at most one request is
// in flight.
type Session struct {
	ID         string
	in         LineReader
	out        Renderer
	dispatcher *Dispatcher
	transcript Transcript
	log        *zap.Logger
}

func NewSession(in LineReader, out Renderer, d *Dispatcher, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		in:         in,
		out:        out,
		dispatcher: d,
		log:        log.With(zap.String("session", id)),
	}
}

// Transcript exposes the conversation for inspection.
func (s *Session) Transcript() *Transcript { return &s.transcript }

// Run loops until /exit, end of input or ctx cancellation. When no
// credential is saved it first runs the setup flow. Errors from individual
// lines are rendered and never end the loop; only input failures do.
func (s *Session) Run(ctx context.Context) error {
	if s.dispatcher.store.Len() == 0 {
		s.log.Info("no saved credentials, starting setup")
		s.out.Render(s.dispatcher.Setup())
	}
	s.out.Render(s.dispatcher.Status())

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := s.in.ReadLine("You")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		o := s.dispatcher.Handle(ctx, &s.transcript, line)
		if o.Action == ActionError {
			s.log.Debug("input failed", zap.Error(o.Err))
		}
		if o.Action == ActionClear {
			s.out.Reset()
		}
		if o.Action != ActionNone {
			s.out.Render(o)
		}
		if o.Action == ActionExit {
			return nil
		}
	}
}

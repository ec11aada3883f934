package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/space"
	"github.com/copyleftdev/hptune/internal/tuner"
)

var (
	// ErrSessionNotFound reports an unknown or closed tuner id.
	ErrSessionNotFound = errors.New("tuner session not found")
	// ErrTooManySessions reports that TUNER_MAX_SESSIONS sessions are open.
	ErrTooManySessions = errors.New("too many open tuner sessions")
	// ErrInvalidRequest reports a malformed request body or parameter.
	ErrInvalidRequest = errors.New("invalid request")
)

// Session is one hosted tuner.
type Session struct {
	ID        string
	Strategy  optimization.Strategy
	Minimize  bool
	CreatedAt time.Time

	tuner *tuner.Synchronized
}

// CreateRequest opens a tuner session. Unset fields fall back to the
// TUNER_* configuration.
type CreateRequest struct {
	Strategy        string          `json:"strategy,omitempty"`
	Seed            *uint64         `json:"seed,omitempty"`
	Minimize        *bool           `json:"minimize,omitempty"`
	StartupTrials   *int            `json:"startup_trials,omitempty"`
	Candidates      *int            `json:"candidates,omitempty"`
	MaxLocalThreads *int            `json:"max_local_threads,omitempty"`
	SearchSpace     json.RawMessage `json:"search_space"`
}

// ReportRequest carries the outcome of a trial.
type ReportRequest struct {
	Loss *float64 `json:"loss"`
	Cost float64  `json:"cost,omitempty"`
}

// Status describes a session.
type Status struct {
	TunerID        string                  `json:"tuner_id"`
	Strategy       string                  `json:"strategy"`
	Minimize       bool                    `json:"minimize"`
	CreatedAt      string                  `json:"created_at"`
	Generated      int                     `json:"generated"`
	Reported       int                     `json:"reported"`
	Running        int                     `json:"running"`
	BestLoss       *float64                `json:"best_loss,omitempty"`
	BestParameters optimization.Parameters `json:"best_parameters,omitempty"`
}

func (s *Server) settings(req CreateRequest) tuner.Settings {
	t := s.cfg.Tuner
	settings := tuner.Settings{
		Strategy:        optimization.Strategy(t.Strategy),
		Seed:            t.Seed,
		Minimize:        t.Minimize,
		StartupTrials:   t.StartupTrials,
		Candidates:      t.Candidates,
		MaxLocalThreads: t.MaxLocalThreads,
	}
	if req.Strategy != "" {
		settings.Strategy = optimization.Strategy(req.Strategy)
	}
	if req.Seed != nil {
		settings.Seed = *req.Seed
	}
	if req.Minimize != nil {
		settings.Minimize = *req.Minimize
	}
	if req.StartupTrials != nil {
		settings.StartupTrials = *req.StartupTrials
	}
	if req.Candidates != nil {
		settings.Candidates = *req.Candidates
	}
	if req.MaxLocalThreads != nil {
		settings.MaxLocalThreads = *req.MaxLocalThreads
	}
	return settings
}

func (s *Server) createSession(req CreateRequest) (*Session, error) {
	if len(req.SearchSpace) == 0 {
		return nil, fmt.Errorf("%w: search_space is required", ErrInvalidRequest)
	}
	sp, err := space.Parse(req.SearchSpace)
	if err != nil {
		return nil, err
	}
	settings := s.settings(req)

	if !s.slots.TryAcquire(1) {
		return nil, ErrTooManySessions
	}

	id := fmt.Sprintf("tuner_%d", s.nextID.Add(1))
	logger := s.logger.With(zap.String("tuner_id", id))
	t, err := tuner.New(sp, settings, logger)
	if err != nil {
		s.slots.Release(1)
		return nil, err
	}

	session := &Session{
		ID:        id,
		Strategy:  settings.Strategy,
		Minimize:  settings.Minimize,
		CreatedAt: time.Now().UTC(),
		tuner:     tuner.Synchronize(tuner.Instrument(t, settings.Strategy, s.collector), settings.Minimize),
	}

	s.sessionsMu.Lock()
	s.sessions[id] = session
	s.sessionsMu.Unlock()
	s.collector.SessionOpened()

	logger.Info("Tuner session created",
		zap.String("strategy", string(settings.Strategy)),
		zap.Uint64("seed", settings.Seed),
		zap.Int("domains", sp.Len()),
	)
	return session, nil
}

func (s *Server) session(id string) (*Session, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

func (s *Server) generate(id string, trialID int) (optimization.Parameters, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return session.tuner.GenerateParameters(trialID)
}

func (s *Server) report(id string, trialID int, req ReportRequest) error {
	if req.Loss == nil {
		return fmt.Errorf("%w: loss is required", ErrInvalidRequest)
	}
	session, err := s.session(id)
	if err != nil {
		return err
	}
	return session.tuner.ReceiveTrialResult(trialID, *req.Loss, req.Cost)
}

func (s *Server) status(id string) (*Status, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sum := session.tuner.Summary()
	return &Status{
		TunerID:        session.ID,
		Strategy:       string(session.Strategy),
		Minimize:       session.Minimize,
		CreatedAt:      session.CreatedAt.Format(time.RFC3339),
		Generated:      sum.Generated,
		Reported:       sum.Reported,
		Running:        sum.Running,
		BestLoss:       sum.BestLoss,
		BestParameters: sum.BestParameters,
	}, nil
}

func (s *Server) closeSession(id string) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.sessionsMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	running := session.tuner.Summary().Running
	s.slots.Release(1)
	s.collector.SessionClosed(string(session.Strategy), running)
	s.logger.Info("Tuner session closed",
		zap.String("tuner_id", id),
		zap.Int("abandoned_trials", running),
	)
	return nil
}

package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const callbackTimeout = 10 * time.Second

var (
	ErrNotFound     = errors.New("run not found")
	ErrShuttingDown = errors.New("run manager is shutting down")
	ErrBadCallback  = errors.New("invalid callback url")
)

// ValidateCallbackURL accepts an empty value or an absolute http(s) URL.
func ValidateCallbackURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCallback, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrBadCallback, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrBadCallback)
	}
	return nil
}

// Executor runs one scenario to completion. *scenario.Runner implements it.
type Executor interface {
	Run(ctx context.Context, sc scenariotypes.Scenario) *scenariotypes.Result
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Run is the record of one submitted scenario execution.
type Run struct {
	ID          uuid.UUID             `json:"id"`
	Scenario    string                `json:"scenario"`
	Status      Status                `json:"status"`
	Result      *scenariotypes.Result `json:"result,omitempty"`
	CallbackURL string                `json:"callback_url,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`

	done chan struct{}
}

// Manager queues submitted scenarios and executes them one at a time, each
// in its own browser session.
type Manager struct {
	executor Executor
	logger   *zap.Logger
	client   *http.Client
	sem      *semaphore.Weighted

	mu     sync.RWMutex
	runs   map[uuid.UUID]*Run
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(executor Executor, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		executor: executor,
		logger:   logger.Named("runs"),
		client:   &http.Client{Timeout: callbackTimeout},
		sem:      semaphore.NewWeighted(1),
		runs:     make(map[uuid.UUID]*Run),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates sc and queues it for execution.
func (m *Manager) Submit(sc scenariotypes.Scenario, callbackURL string) (*Run, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCallbackURL(callbackURL); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShuttingDown
	}

	now := time.Now().UTC()
	run := &Run{
		ID:          uuid.New(),
		Scenario:    sc.Name,
		Status:      StatusPending,
		CallbackURL: callbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
		done:        make(chan struct{}),
	}
	m.runs[run.ID] = run

	m.wg.Add(1)
	go m.execute(run, sc)

	m.logger.Info("Run queued", zap.String("run_id", run.ID.String()), zap.String("scenario", sc.Name))
	return run.snapshot(), nil
}

// Get returns a copy of the run with the given id.
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run.snapshot(), nil
}

// List returns copies of every run, oldest first.
func (m *Manager) List() []*Run {
	m.mu.RLock()
	out := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Wait blocks until the run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-run.done:
		return m.Get(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) execute(run *Run, sc scenariotypes.Scenario) {
	defer m.wg.Done()
	defer close(run.done)
	logger := m.logger.With(zap.String("run_id", run.ID.String()), zap.String("scenario", sc.Name))

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		logger.Warn("Run cancelled before it started", zap.Error(err))
		m.update(run, StatusCancelled, nil)
		return
	}
	if m.ctx.Err() != nil {
		m.sem.Release(1)
		logger.Warn("Run cancelled before it started")
		m.update(run, StatusCancelled, nil)
		return
	}
	m.update(run, StatusRunning, nil)
	result := m.executor.Run(m.ctx, sc)
	m.sem.Release(1)

	m.update(run, StatusDone, result)
	logger.Info("Run finished", zap.String("status", string(result.Status)))

	if run.CallbackURL != "" {
		m.notifyCallback(logger, run.ID)
	}
}

func (m *Manager) update(run *Run, status Status, result *scenariotypes.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Status = status
	if result != nil {
		run.Result = result
	}
	run.UpdatedAt = time.Now().UTC()
}

// notifyCallback POSTs the finished run record to its callback URL.
func (m *Manager) notifyCallback(logger *zap.Logger, id uuid.UUID) {
	run, err := m.Get(id)
	if err != nil {
		return
	}
	logger = logger.With(zap.String("callback_url", run.CallbackURL))

	body, err := json.Marshal(run)
	if err != nil {
		logger.Error("Error marshaling run for callback", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, run.CallbackURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("Error creating callback request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		logger.Warn("Error sending callback", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info("Callback notification sent", zap.Int("status", resp.StatusCode))
	} else {
		logger.Warn("Callback notification rejected", zap.Int("status", resp.StatusCode))
	}
}

// Shutdown stops accepting runs, cancels queued and in-flight runs and waits
// for them to release their sessions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.client.CloseIdleConnections()
		m.logger.Info("Run manager shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs to finish: %w", ctx.Err())
	}
}

func (r *Run) snapshot() *Run {
	cp := *r
	return &cp
}

package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/omplayer/server/internal/domain"
	omplayer "github.com/omplayer/server/internal/player"
	playerrepo "github.com/omplayer/server/internal/repository/player"
	"github.com/omplayer/server/pkg/validator"
)

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerAlreadyExists = errors.New("player already exists")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
)

// ValidationError carries field level input errors.
type ValidationError struct {
	Errors []validator.ValidationError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

type iRegistry interface {
	Add(*omplayer.Player) error
	Get(string) (*omplayer.Player, error)
	Remove(string) (*omplayer.Player, error)
	IDs() []string
}

type iSnapshotRepo interface {
	SetSnapshot(context.Context, *playerrepo.SetSnapshotParams) error
	GetSnapshot(context.Context, string) (playerrepo.Snapshot, error)
	RemoveSnapshot(context.Context, string) error
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	RemoveByConn(*websocket.Conn) (string, error)
	RemoveByPlayerID(string) []*websocket.Conn
}

const snapshotQueueSize = 256

type snapshotWrite struct {
	snapshot domain.Snapshot
	remove   bool
}

type service struct {
	registry     iRegistry
	snapshotRepo iSnapshotRepo
	connRepo     iConnRepo
	playerConfig omplayer.Config
	validator    *validator.Validator
	logger       *slog.Logger

	writes    chan snapshotWrite
	writerWG  sync.WaitGroup
	closeOnce sync.Once
}

// NewService wires the player registry to snapshot persistence.
// playerConfig is the template every created player starts from.
func NewService(registry iRegistry, snapshotRepo iSnapshotRepo, connRepo iConnRepo, playerConfig omplayer.Config, logger *slog.Logger) *service {
	s := &service{
		registry:     registry,
		snapshotRepo: snapshotRepo,
		connRepo:     connRepo,
		playerConfig: playerConfig,
		validator:    validator.NewValidator(),
		logger:       logger,
		writes:       make(chan snapshotWrite, snapshotQueueSize),
	}

	s.writerWG.Add(1)
	go s.runSnapshotWriter()

	return s
}

func (s *service) validate(v any) error {
	if errs, ok := s.validator.Validate(v); !ok {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// runSnapshotWriter applies snapshot writes in order.
func (s *service) runSnapshotWriter() {
	defer s.writerWG.Done()

	ctx := context.Background()
	for w := range s.writes {
		if w.remove {
			if err := s.snapshotRepo.RemoveSnapshot(ctx, w.snapshot.PlayerID); err != nil && !errors.Is(err, playerrepo.ErrSnapshotNotFound) {
				s.logger.WarnContext(ctx, "failed to remove snapshot", "player_id", w.snapshot.PlayerID, "error", err)
			}
			continue
		}

		if err := s.snapshotRepo.SetSnapshot(ctx, &playerrepo.SetSnapshotParams{
			Snapshot: toRepoSnapshot(w.snapshot),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to set snapshot", "player_id", w.snapshot.PlayerID, "error", err)
		}
	}
}

func (s *service) enqueue(w snapshotWrite) {
	select {
	case s.writes <- w:
	default:
		s.logger.Warn("snapshot queue is full, write dropped", "player_id", w.snapshot.PlayerID)
	}
}

// Shutdown destroys every player and flushes pending snapshot writes.
func (s *service) Shutdown(ctx context.Context) {
	for _, id := range s.registry.IDs() {
		if err := s.DestroyPlayer(ctx, id); err != nil {
			s.logger.InfoContext(ctx, "failed to destroy player", "player_id", id, "error", err)
		}
	}

	s.closeOnce.Do(func() {
		close(s.writes)
	})
	s.writerWG.Wait()
}

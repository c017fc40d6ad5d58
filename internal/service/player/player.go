package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"

	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
	omplayer "github.com/omplayer/server/internal/player"
	playerrepo "github.com/omplayer/server/internal/repository/player"
)

type CreatePlayerParams struct {
	ContainerID string          `json:"container_id" validate:"omitempty,max=64"`
	Kind        string          `json:"kind" validate:"omitempty,oneof=video audio"`
	Sources     []domain.Source `json:"src" validate:"dive"`
	Options     domain.Options  `json:"options"`
}

type CreatePlayerResponse struct {
	ID        string        `json:"id"`
	Container controls.View `json:"container"`
}

// CreatePlayer builds and registers a player; sources, when given, are
// loaded right away.
func (s *service) CreatePlayer(ctx context.Context, params *CreatePlayerParams) (CreatePlayerResponse, error) {
	if err := s.validate(params); err != nil {
		return CreatePlayerResponse{}, err
	}

	id := params.ContainerID
	if id == "" {
		id = uuid.NewString()
	}

	cfg := s.playerConfig
	cfg.Kind = domain.ParseMediaKind(params.Kind)
	cfg.Logger = s.logger
	cfg.OnStateChange = func(snapshot domain.Snapshot) {
		s.enqueue(snapshotWrite{snapshot: snapshot})
	}

	p, err := omplayer.New(id, cfg, params.Options)
	if err != nil {
		return CreatePlayerResponse{}, fmt.Errorf("failed to create player: %w", err)
	}

	if err := s.registry.Add(p); err != nil {
		_ = p.Destroy()
		if errors.Is(err, playerrepo.ErrAlreadyExists) {
			return CreatePlayerResponse{}, ErrPlayerAlreadyExists
		}
		return CreatePlayerResponse{}, fmt.Errorf("failed to add player: %w", err)
	}
	s.enqueue(snapshotWrite{snapshot: p.Snapshot()})

	if len(params.Sources) > 0 {
		p.SetSrc(params.Sources...)
		if err := p.Load(); err != nil {
			s.logger.InfoContext(ctx, "failed to load initial sources", "player_id", id, "error", err)
			if destroyErr := s.DestroyPlayer(ctx, id); destroyErr != nil {
				err = multierror.Append(err, destroyErr)
			}
			return CreatePlayerResponse{}, fmt.Errorf("failed to load player: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "player created", "player_id", id, "kind", cfg.Kind.String())

	return CreatePlayerResponse{
		ID:        id,
		Container: p.Container().View(),
	}, nil
}

// GetInstance returns the live player with id.
func (s *service) GetInstance(ctx context.Context, id string) (*omplayer.Player, error) {
	p, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, playerrepo.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return p, nil
}

func (s *service) GetPlayer(ctx context.Context, id string) (Player, error) {
	p, err := s.GetInstance(ctx, id)
	if err != nil {
		return Player{}, err
	}

	snapshot := p.Snapshot()
	res := Player{
		ID:          id,
		Kind:        p.Kind().String(),
		State:       snapshot.State,
		Src:         p.Src(),
		CurrentTime: snapshot.CurrentTime,
		Duration:    finite(p.Duration()),
		Muted:       snapshot.Muted,
		Volume:      snapshot.Volume,
		Autoplay:    snapshot.Autoplay,
		IsAd:        p.IsAd(),
		Captions:    p.Captions(),
		Container:   p.Container().View(),
	}
	if err := p.Err(); err != nil {
		msg := err.Error()
		res.Error = &msg
	}

	return res, nil
}

func (s *service) ListPlayers(ctx context.Context) []string {
	return s.registry.IDs()
}

// DestroyPlayer unregisters and destroys the player, closing its
// websocket clients.
func (s *service) DestroyPlayer(ctx context.Context, id string) error {
	p, err := s.registry.Remove(id)
	if err != nil {
		if errors.Is(err, playerrepo.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to remove player: %w", err)
	}

	var result *multierror.Error
	if err := p.Destroy(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to destroy player: %w", err))
	}

	for _, conn := range s.connRepo.RemoveByPlayerID(id) {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	s.enqueue(snapshotWrite{snapshot: domain.Snapshot{PlayerID: id}, remove: true})
	s.logger.InfoContext(ctx, "player removed", "player_id", id)

	return result.ErrorOrNil()
}

type LoadPlayerParams struct {
	PlayerID string          `json:"-"`
	Sources  []domain.Source `json:"src" validate:"dive"`
}

// LoadPlayer replaces the sources when given, then loads.
func (s *service) LoadPlayer(ctx context.Context, params *LoadPlayerParams) error {
	if err := s.validate(params); err != nil {
		return err
	}

	p, err := s.GetInstance(ctx, params.PlayerID)
	if err != nil {
		return err
	}

	if len(params.Sources) > 0 {
		p.SetSrc(params.Sources...)
	}

	if err := p.Load(); err != nil {
		return fmt.Errorf("failed to load player: %w", err)
	}

	return nil
}

type AddCaptionsParams struct {
	PlayerID string              `json:"-"`
	Track    domain.CaptionTrack `json:"track"`
}

func (s *service) AddCaptions(ctx context.Context, params *AddCaptionsParams) error {
	if err := s.validate(params); err != nil {
		return err
	}

	p, err := s.GetInstance(ctx, params.PlayerID)
	if err != nil {
		return err
	}

	if err := p.AddCaptions(params.Track); err != nil {
		return fmt.Errorf("failed to add captions: %w", err)
	}

	return nil
}

func (s *service) GetSnapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	snapshot, err := s.snapshotRepo.GetSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, playerrepo.ErrSnapshotNotFound) {
			return domain.Snapshot{}, ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return fromRepoSnapshot(snapshot), nil
}

type ConnectClientParams struct {
	Conn     *websocket.Conn
	PlayerID string
}

// ConnectClient attaches a websocket client to a player.
func (s *service) ConnectClient(ctx context.Context, params *ConnectClientParams) (*omplayer.Player, error) {
	p, err := s.GetInstance(ctx, params.PlayerID)
	if err != nil {
		return nil, err
	}

	if err := s.connRepo.Add(params.Conn, params.PlayerID); err != nil {
		return nil, fmt.Errorf("failed to add connection: %w", err)
	}

	return p, nil
}

func (s *service) DisconnectClient(ctx context.Context, conn *websocket.Conn) {
	if _, err := s.connRepo.RemoveByConn(conn); err != nil {
		s.logger.DebugContext(ctx, "connection already detached", "error", err)
	}
}

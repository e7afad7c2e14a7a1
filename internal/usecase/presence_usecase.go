package usecase

import (
	"context"

	"linkup/internal/entity"
	"linkup/internal/repository"
)

// PresenceUsecase backs the gateway's connect/disconnect transitions. Room
// membership is always rehydrated from the store; the in-memory registry is
// never a source of truth.
type PresenceUsecase interface {
	Connect(ctx context.Context, userId string) (entity.User, []string, error)
	Disconnect(ctx context.Context, userId string) ([]string, error)
}

type presenceUsecase struct {
	userRepo repository.UserRepository
	roomRepo repository.ChatRoomRepository
}

func NewPresenceUsecase(userRepo repository.UserRepository, roomRepo repository.ChatRoomRepository) PresenceUsecase {
	return &presenceUsecase{
		userRepo: userRepo,
		roomRepo: roomRepo,
	}
}

// Connect marks the user online and returns the rooms they belong to.
func (p *presenceUsecase) Connect(ctx context.Context, userId string) (entity.User, []string, error) {
	user, err := p.userRepo.Get(ctx, userId)
	if err != nil {
		return entity.User{}, nil, err
	}

	if err := p.userRepo.SetOnline(ctx, userId, true); err != nil {
		return entity.User{}, nil, err
	}
	user.IsOnline = true

	roomIds, err := p.roomIds(ctx, userId)
	if err != nil {
		return entity.User{}, nil, err
	}

	return user, roomIds, nil
}

// Disconnect marks the user offline with a last-seen timestamp and returns
// the rooms that should hear about it.
func (p *presenceUsecase) Disconnect(ctx context.Context, userId string) ([]string, error) {
	if err := p.userRepo.SetOnline(ctx, userId, false); err != nil {
		return nil, err
	}

	return p.roomIds(ctx, userId)
}

func (p *presenceUsecase) roomIds(ctx context.Context, userId string) ([]string, error) {
	rooms, err := p.roomRepo.Index(ctx, userId)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.Id)
	}
	return ids, nil
}

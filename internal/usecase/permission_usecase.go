package usecase

import (
	"context"
	"time"

	"linkup/internal/entity"
	"linkup/internal/repository"
)

// requestTTL bounds how long an unanswered permission request lives before
// the store reaps it.
const requestTTL = 7 * 24 * time.Hour

// RequestNotifier covers the dispatcher surface the gate uses.
type RequestNotifier interface {
	NotifyChatRequest(request entity.PermissionRequest)
	NotifyRequestResolved(request entity.PermissionRequest)
}

type RespondResult struct {
	Request entity.PermissionRequest `json:"request"`
	Room    *entity.ChatRoom         `json:"room,omitempty"`
}

type PermissionUsecase interface {
	CheckPermission(ctx context.Context, requesterId, recipientId string) (entity.PermissionCheck, error)
	CreateRequest(ctx context.Context, requesterId, recipientId string, chatData entity.ChatData, message string) (entity.PermissionRequest, error)
	Respond(ctx context.Context, requestId, responderId, decision string) (RespondResult, error)
	IndexForRecipient(ctx context.Context, recipientId string) ([]entity.PermissionRequest, error)
}

type permissionUsecase struct {
	permissionRepo repository.PermissionRepository
	userRepo       repository.UserRepository
	chatUc         ChatUsecase
	notifier       RequestNotifier
}

func NewPermissionUsecase(
	permissionRepo repository.PermissionRepository,
	userRepo repository.UserRepository,
	chatUc ChatUsecase,
	notifier RequestNotifier,
) PermissionUsecase {
	return &permissionUsecase{
		permissionRepo: permissionRepo,
		userRepo:       userRepo,
		chatUc:         chatUc,
		notifier:       notifier,
	}
}

// CheckPermission evaluates the recipient's messaging policy for the
// requester.
func (p *permissionUsecase) CheckPermission(ctx context.Context, requesterId, recipientId string) (entity.PermissionCheck, error) {
	recipient, err := p.userRepo.Get(ctx, recipientId)
	if err != nil {
		return entity.PermissionCheck{}, err
	}

	switch recipient.MessagePolicy {
	case entity.MessagePolicyNobody:
		return entity.PermissionCheck{
			Reason: "recipient does not accept new chats",
		}, nil

	case entity.MessagePolicyFollowers:
		isFollower, err := p.userRepo.IsFollower(ctx, requesterId, recipientId)
		if err != nil {
			return entity.PermissionCheck{}, err
		}
		if isFollower {
			return entity.PermissionCheck{Allowed: true}, nil
		}
		return entity.PermissionCheck{
			RequiresApproval: true,
			Reason:           "recipient only accepts chats from followers",
		}, nil

	default:
		return entity.PermissionCheck{Allowed: true}, nil
	}
}

// CreateRequest files an approval request for the recipient. The unique
// pending constraint makes a duplicate for the same ordered pair a conflict.
func (p *permissionUsecase) CreateRequest(ctx context.Context, requesterId, recipientId string, chatData entity.ChatData, message string) (entity.PermissionRequest, error) {
	if requesterId == recipientId {
		return entity.PermissionRequest{}, ErrInvalidParticipants
	}

	if _, err := p.userRepo.Get(ctx, recipientId); err != nil {
		return entity.PermissionRequest{}, err
	}

	if len(chatData.Participants) == 0 {
		chatData.Participants = []string{requesterId, recipientId}
	}

	request := entity.PermissionRequest{
		RequesterId: requesterId,
		RecipientId: recipientId,
		Message:     message,
		ChatData:    chatData,
		ExpiresAt:   time.Now().Add(requestTTL),
	}

	requestId, err := p.permissionRepo.Create(ctx, request)
	if err != nil {
		return entity.PermissionRequest{}, err
	}

	request.Id = requestId
	request.Status = entity.RequestStatusPending
	request.CreatedAt = time.Now()

	go p.notifier.NotifyChatRequest(request)

	return request, nil
}

// Respond resolves a pending request exactly once. On approval the stored
// chat snapshot materializes (or reuses) the room.
func (p *permissionUsecase) Respond(ctx context.Context, requestId, responderId, decision string) (RespondResult, error) {
	if decision != entity.RequestStatusApproved && decision != entity.RequestStatusDenied {
		return RespondResult{}, ErrInvalidDecision
	}

	request, err := p.permissionRepo.Get(ctx, requestId)
	if err != nil {
		return RespondResult{}, err
	}
	if request.RecipientId != responderId {
		return RespondResult{}, ErrNotRecipient
	}
	if request.IsTerminal() {
		return RespondResult{}, ErrRequestResolved
	}

	ok, err := p.permissionRepo.MarkResponded(ctx, requestId, decision)
	if err != nil {
		return RespondResult{}, err
	}
	if !ok {
		return RespondResult{}, ErrRequestResolved
	}

	request.Status = decision
	now := time.Now()
	request.RespondedAt = &now

	result := RespondResult{Request: request}

	if decision == entity.RequestStatusApproved {
		room, err := p.chatUc.CreateOrReuseRoom(
			ctx,
			request.ChatData.Participants,
			request.ChatData.IsGroup,
			request.ChatData.Name,
			responderId,
		)
		if err != nil {
			return RespondResult{}, err
		}
		result.Room = &room
	}

	go p.notifier.NotifyRequestResolved(request)

	return result, nil
}

func (p *permissionUsecase) IndexForRecipient(ctx context.Context, recipientId string) ([]entity.PermissionRequest, error) {
	return p.permissionRepo.IndexForRecipient(ctx, recipientId)
}

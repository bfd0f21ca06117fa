// Package service owns the per-engagement state machine:
// accept -> in-progress -> awaiting-confirmation -> confirmed/disputed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
	"github.com/realtobyfu/karma-farm-sub001/internal/realtime"
	"github.com/realtobyfu/karma-farm-sub001/internal/repository"
	"github.com/realtobyfu/karma-farm-sub001/internal/settlement"
)

// SettlementOutcome reports how settlement went, separately from the
// engagement transition it accompanies.
type SettlementOutcome string

const (
	// SettlementSettled: the karma transfer landed synchronously.
	SettlementSettled SettlementOutcome = "settled"
	// SettlementPending: the transfer failed and was queued for retry.
	SettlementPending SettlementOutcome = "pending"
	// SettlementSkipped: cash posts settle off-platform.
	SettlementSkipped SettlementOutcome = "skipped"
)

// EnqueueSettlementFunc enqueues a background settlement retry. Provided
// by main as a closure over the river client.
type EnqueueSettlementFunc func(ctx context.Context, engagementID uuid.UUID) error

// EngagementService coordinates engagement operations and state transitions.
type EngagementService struct {
	pool              *pgxpool.Pool
	engagements       *repository.EngagementRepository
	posts             *repository.PostRepository
	chats             *repository.ChatRepository
	settlement        *settlement.Service
	publisher         *realtime.Publisher
	enqueueSettlement EnqueueSettlementFunc
	validator         *Validator
}

// NewEngagementService creates a new EngagementService.
func NewEngagementService(
	pool *pgxpool.Pool,
	engagements *repository.EngagementRepository,
	posts *repository.PostRepository,
	chats *repository.ChatRepository,
	settlementSvc *settlement.Service,
	publisher *realtime.Publisher,
	enqueueSettlement EnqueueSettlementFunc,
) *EngagementService {
	return &EngagementService{
		pool:              pool,
		engagements:       engagements,
		posts:             posts,
		chats:             chats,
		settlement:        settlementSvc,
		publisher:         publisher,
		enqueueSettlement: enqueueSettlement,
		validator:         NewValidator(),
	}
}

// publishEngagementAndCommit publishes the engagement change within the
// transaction, then commits. Events are scoped to the post's chats so only
// the parties' streams see the transition; a post with no chat yet emits
// nothing and the change surfaces on refetch.
func (s *EngagementService) publishEngagementAndCommit(
	ctx context.Context,
	tx pgx.Tx,
	e *domain.TaskEngagement,
	status domain.EngagementStatus,
) error {
	postChats, err := s.chats.ListByPost(ctx, e.PostID)
	if err != nil {
		return err
	}

	payload := realtime.EngagementPayload{
		EngagementID: e.ID,
		PostID:       e.PostID,
		Status:       string(status),
	}
	for _, chat := range postChats {
		chatID := chat.ID
		event, err := realtime.NewEvent(realtime.EventEngagement, &chatID, payload)
		if err != nil {
			return fmt.Errorf("build engagement event: %w", err)
		}
		if err := s.publisher.PublishTx(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *EngagementService) begin(ctx context.Context) (pgx.Tx, func(), error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	rollback := func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}
	return tx, rollback, nil
}

// AcceptTask creates an engagement for a post in IN_PROGRESS. The insert is
// compare-and-swap against the post's engagement slot: under concurrent
// accepts exactly one fulfiller wins and the rest get ErrAlreadyEngaged.
func (s *EngagementService) AcceptTask(
	ctx context.Context,
	postID, fulfillerID uuid.UUID,
	proposedCompletionDate *time.Time,
) (*domain.TaskEngagement, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != domain.PostStatusActive {
		return nil, fmt.Errorf("%w: post %s is %s", domain.ErrAlreadyEngaged, postID, post.Status)
	}
	if post.OwnerID == fulfillerID {
		return nil, fmt.Errorf("%w: post %s", domain.ErrSelfEngagement, postID)
	}

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	engagement := &domain.TaskEngagement{
		PostID:                 postID,
		OwnerID:                post.OwnerID,
		FulfillerID:            fulfillerID,
		Status:                 domain.EngagementStatusInProgress,
		ProposedCompletionDate: proposedCompletionDate,
	}
	if _, err := s.engagements.Create(ctx, tx, engagement); err != nil {
		return nil, err
	}

	if err := s.publishEngagementAndCommit(ctx, tx, engagement, engagement.Status); err != nil {
		return nil, err
	}

	slog.Info("task accepted",
		"engagement_id", engagement.ID,
		"post_id", postID,
		"fulfiller_id", fulfillerID,
	)
	return engagement, nil
}

// MarkCompleted transitions IN_PROGRESS -> AWAITING_CONFIRMATION. Legal
// only for the fulfiller.
func (s *EngagementService) MarkCompleted(
	ctx context.Context,
	engagementID, actorID uuid.UUID,
	notes *string,
) (*domain.TaskEngagement, error) {
	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	engagement, err := s.engagements.GetByIDForUpdate(ctx, tx, engagementID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanComplete(engagement, actorID); err != nil {
		return nil, err
	}

	if err := s.engagements.MarkCompleted(ctx, tx, engagementID, notes); err != nil {
		return nil, err
	}

	if err := s.publishEngagementAndCommit(ctx, tx, engagement, domain.EngagementStatusAwaitingConfirmation); err != nil {
		return nil, err
	}

	slog.Info("task marked completed",
		"engagement_id", engagementID,
		"fulfiller_id", actorID,
	)
	return s.engagements.GetByID(ctx, engagementID)
}

// ConfirmCompletion transitions AWAITING_CONFIRMATION -> CONFIRMED, writes
// the post status back, archives the post's chats, and then attempts
// settlement. The confirmed transition is never rolled back on settlement
// failure; the outcome is reported separately and retried in the
// background.
func (s *EngagementService) ConfirmCompletion(
	ctx context.Context,
	engagementID, actorID uuid.UUID,
) (*domain.TaskEngagement, SettlementOutcome, error) {
	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer rollback()

	engagement, err := s.engagements.GetByIDForUpdate(ctx, tx, engagementID)
	if err != nil {
		return nil, "", err
	}
	if err := s.validator.CanConfirm(engagement, actorID); err != nil {
		return nil, "", err
	}

	post, err := s.posts.GetByID(ctx, engagement.PostID)
	if err != nil {
		return nil, "", err
	}

	if err := s.engagements.Confirm(ctx, tx, engagementID); err != nil {
		return nil, "", err
	}
	if err := s.posts.SetStatus(ctx, tx, engagement.PostID, domain.PostStatusCompleted); err != nil {
		return nil, "", err
	}
	if err := s.chats.ArchiveByPost(ctx, tx, engagement.PostID); err != nil {
		return nil, "", err
	}

	if err := s.publishEngagementAndCommit(ctx, tx, engagement, domain.EngagementStatusConfirmed); err != nil {
		return nil, "", err
	}

	outcome := s.settle(ctx, engagementID, post)

	slog.Info("task confirmed",
		"engagement_id", engagementID,
		"owner_id", actorID,
		"settlement", outcome,
	)

	confirmed, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		return nil, "", err
	}
	return confirmed, outcome, nil
}

// settle runs after the confirm transaction has committed. A failed
// transfer leaves a confirmed-but-unsettled engagement, which is queued
// for background retry and swept by reconcile-settlements.
func (s *EngagementService) settle(ctx context.Context, engagementID uuid.UUID, post *domain.Post) SettlementOutcome {
	if post.RewardType != domain.RewardTypeKarma {
		return SettlementSkipped
	}

	_, err := s.settlement.SettleEngagement(ctx, engagementID)
	if err == nil {
		return SettlementSettled
	}
	slog.Warn("settlement failed, queueing retry",
		"engagement_id", engagementID,
		"error", err,
	)

	if err := s.enqueueSettlement(ctx, engagementID); err != nil {
		slog.Error("failed to enqueue settlement retry, reconcile sweep will pick it up",
			"engagement_id", engagementID,
			"error", err,
		)
	}
	return SettlementPending
}

// Dispute transitions IN_PROGRESS or AWAITING_CONFIRMATION -> DISPUTED,
// by either party. Resolution beyond entering the state is out of scope.
func (s *EngagementService) Dispute(
	ctx context.Context,
	engagementID, actorID uuid.UUID,
	reason string,
) (*domain.TaskEngagement, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrEmptyReason
	}

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	engagement, err := s.engagements.GetByIDForUpdate(ctx, tx, engagementID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanDispute(engagement, actorID); err != nil {
		return nil, err
	}

	if err := s.engagements.Dispute(ctx, tx, engagementID, engagement.Status, reason); err != nil {
		return nil, err
	}

	if err := s.publishEngagementAndCommit(ctx, tx, engagement, domain.EngagementStatusDisputed); err != nil {
		return nil, err
	}

	slog.Info("task disputed",
		"engagement_id", engagementID,
		"actor_id", actorID,
	)
	return s.engagements.GetByID(ctx, engagementID)
}

// Get retrieves an engagement. This is the refetch path clients use after
// a state conflict.
func (s *EngagementService) Get(ctx context.Context, engagementID uuid.UUID) (*domain.TaskEngagement, error) {
	return s.engagements.GetByID(ctx, engagementID)
}

// ActiveForPost retrieves the post's active engagement, if any. Losers of
// an accept race use this to see who won.
func (s *EngagementService) ActiveForPost(ctx context.Context, postID uuid.UUID) (*domain.TaskEngagement, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.engagements.GetActiveByPostID(ctx, postID)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
	"github.com/vedran77/campuschat/pkg/validator"
)

type GroupService struct {
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	now       func() time.Time
}

func NewGroupService(groupRepo repository.GroupRepository, userRepo repository.UserRepository) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

type CreateGroupInput struct {
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Avatar      *string   `json:"avatar,omitempty"`
	CreatorID   uuid.UUID `json:"creatorId"`
}

// GroupUpdate holds the editable group fields. Nil means unchanged.
type GroupUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

func (u GroupUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Avatar == nil
}

// CreateGroup stores the group and makes the creator its first admin in one
// transaction.
func (s *GroupService) CreateGroup(ctx context.Context, input CreateGroupInput) (*domain.Group, error) {
	if errs := validator.ValidateGroup(&input.Name, input.Description, input.Avatar); errs.HasErrors() {
		return nil, domain.NewFieldErrors(errs)
	}

	creator, err := s.userRepo.GetByID(ctx, input.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, domain.ErrUserNotFound
	}

	now := s.now()
	group := &domain.Group{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Avatar:      input.Avatar,
		MemberCount: 1,
		Status:      domain.GroupActive,
		CreatedBy:   input.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	member := &domain.GroupMember{
		GroupID:  group.ID,
		UserID:   input.CreatorID,
		Role:     domain.RoleAdmin,
		Status:   domain.MemberActive,
		JoinedAt: now,
	}

	if err := s.groupRepo.Create(ctx, group, member); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || !group.IsActive() {
		return nil, domain.ErrGroupNotFound
	}
	return group, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, groupID, requesterID uuid.UUID, upd GroupUpdate) (*domain.Group, error) {
	if upd.IsEmpty() {
		return nil, domain.ErrEmptyUpdate
	}
	if errs := validator.ValidateGroup(upd.Name, upd.Description, upd.Avatar); errs.HasErrors() {
		return nil, domain.NewFieldErrors(errs)
	}

	var updated *domain.Group
	err := s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if err := requireAdmin(ctx, tx, requesterID); err != nil {
			return err
		}

		g := *tx.Group()
		if upd.Name != nil {
			g.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Description != nil {
			g.Description = upd.Description
		}
		if upd.Avatar != nil {
			g.Avatar = upd.Avatar
		}
		g.UpdatedAt = s.now()

		if err := tx.Update(ctx, &g); err != nil {
			return fmt.Errorf("updating group: %w", err)
		}
		updated = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteGroup soft-deletes the group. Messages and memberships stay.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, requesterID uuid.UUID) error {
	return s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if err := requireAdmin(ctx, tx, requesterID); err != nil {
			return err
		}
		g := *tx.Group()
		g.Status = domain.GroupDeleted
		g.UpdatedAt = s.now()
		return tx.Update(ctx, &g)
	})
}

func (s *GroupService) ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.GroupMember, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.groupRepo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.GroupMember{}
	}
	return members, nil
}

func (s *GroupService) ListUserGroups(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	groups, err := s.groupRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

func (s *GroupService) AddMember(ctx context.Context, groupID, targetID, requesterID uuid.UUID) (*domain.GroupMember, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	var member *domain.GroupMember
	err = s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if err := requireAdmin(ctx, tx, requesterID); err != nil {
			return err
		}

		added, err := tx.UpsertMember(ctx, targetID, domain.RoleMember, s.now())
		if err != nil {
			return fmt.Errorf("adding member: %w", err)
		}
		if !added {
			return domain.ErrAlreadyMember
		}
		if err := tx.AdjustMemberCount(ctx, 1); err != nil {
			return err
		}

		member, err = tx.GetMember(ctx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember lets an admin remove anyone, or any member leave. The last
// active admin can do neither to themselves.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, targetID, requesterID uuid.UUID) error {
	return s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if !tx.Group().IsActive() {
			return domain.ErrGroupNotFound
		}
		if targetID != requesterID {
			if err := requireAdmin(ctx, tx, requesterID); err != nil {
				return err
			}
		}

		target, err := tx.GetMember(ctx, targetID)
		if err != nil {
			return err
		}
		if !target.IsActive() {
			return domain.ErrMemberNotFound
		}

		removed, err := tx.DeactivateMember(ctx, targetID, s.now())
		if err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		if !removed {
			return domain.ErrSoleAdmin
		}
		return tx.AdjustMemberCount(ctx, -1)
	})
}

func (s *GroupService) UpdateRole(ctx context.Context, groupID, targetID uuid.UUID, role domain.Role, requesterID uuid.UUID) (*domain.GroupMember, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if targetID == requesterID {
		return nil, domain.ErrSelfRoleChange
	}

	var member *domain.GroupMember
	err := s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if err := requireAdmin(ctx, tx, requesterID); err != nil {
			return err
		}

		target, err := tx.GetMember(ctx, targetID)
		if err != nil {
			return err
		}
		if !target.IsActive() {
			return domain.ErrMemberNotFound
		}

		changed, err := tx.SetRole(ctx, targetID, role)
		if err != nil {
			return fmt.Errorf("updating role: %w", err)
		}
		if !changed {
			return domain.ErrSoleAdmin
		}

		member, err = tx.GetMember(ctx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// TransferAdmin promotes toID and demotes fromID in one transaction.
// Promotion runs first so the group never drops to zero admins.
func (s *GroupService) TransferAdmin(ctx context.Context, groupID, fromID, toID uuid.UUID) error {
	if fromID == toID {
		return domain.ErrSelfTransfer
	}

	return s.groupRepo.WithinGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		if err := requireAdmin(ctx, tx, fromID); err != nil {
			return err
		}

		target, err := tx.GetMember(ctx, toID)
		if err != nil {
			return err
		}
		if !target.IsActive() {
			return domain.ErrMemberNotFound
		}

		if _, err := tx.SetRole(ctx, toID, domain.RoleAdmin); err != nil {
			return fmt.Errorf("promoting new admin: %w", err)
		}
		demoted, err := tx.SetRole(ctx, fromID, domain.RoleMember)
		if err != nil {
			return fmt.Errorf("demoting previous admin: %w", err)
		}
		if !demoted {
			return domain.ErrSoleAdmin
		}
		return nil
	})
}

func (s *GroupService) IsAdmin(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return member.IsAdmin(), nil
}

func (s *GroupService) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return member.IsActive(), nil
}

func (s *GroupService) GetStats(ctx context.Context, groupID, requesterID uuid.UUID) (*domain.GroupStats, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	ok, err := s.IsMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotMember
	}

	stats, err := s.groupRepo.Stats(ctx, groupID, s.now())
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, domain.ErrGroupNotFound
	}
	return stats, nil
}

// requireAdmin checks the requester inside the locked transaction so the
// role cannot change between check and write.
func requireAdmin(ctx context.Context, tx repository.GroupTx, userID uuid.UUID) error {
	if !tx.Group().IsActive() {
		return domain.ErrGroupNotFound
	}
	member, err := tx.GetMember(ctx, userID)
	if err != nil {
		return err
	}
	if !member.IsAdmin() {
		return domain.ErrNotAdmin
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// GroupService implements the Connect GroupService.
type GroupService struct {
	store  storage.Store
	logger *slog.Logger
}

var _ rpc.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: store, logger: logger}
}

// CreateGroup creates a new group with the caller as creator and first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[rpc.CreateGroupRequest]) (*connect.Response[rpc.CreateGroupResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "CreateGroup request received", "name", req.Msg.Name)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, toConnectError(errMissing("name"))
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Msg.Description),
		CreatedBy:   userID,
		Members:     []string{userID},
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.ErrorContext(ctx, "CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	s.logger.InfoContext(ctx, "Group created", "group_id", group.ID)

	rg, err := s.toRPC(ctx, group)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.CreateGroupResponse{Group: rg}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[rpc.GetGroupRequest]) (*connect.Response[rpc.GetGroupResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "GetGroup request received", "group_id", req.Msg.GroupID)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(errMissing("group_id"))
	}
	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	rg, err := s.toRPC(ctx, group)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.GetGroupResponse{Group: rg}), nil
}

// ListGroups retrieves the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[rpc.ListGroupsRequest]) (*connect.Response[rpc.ListGroupsResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "ListGroups request received")

	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "ListGroups failed", "error", err)
		return nil, toConnectError(err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, g := range groups {
		for _, id := range append([]string{g.CreatedBy}, g.Members...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	d, err := loadDirectory(ctx, s.store, ids)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &rpc.ListGroupsResponse{Groups: make([]*rpc.Group, len(groups))}
	for i, g := range groups {
		resp.Groups[i] = toRPCGroup(g, d)
	}

	s.logger.InfoContext(ctx, "ListGroups successful", "count", len(groups))
	return connect.NewResponse(resp), nil
}

// AddGroupMember adds a registered user, found by email, to a group. Any
// member may add others.
func (s *GroupService) AddGroupMember(ctx context.Context, req *connect.Request[rpc.AddGroupMemberRequest]) (*connect.Response[rpc.AddGroupMemberResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "AddGroupMember request received", "group_id", req.Msg.GroupID)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(errMissing("group_id"))
	}
	if strings.TrimSpace(req.Msg.Email) == "" {
		return nil, toConnectError(errMissing("email"))
	}
	if _, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, toConnectError(err)
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Msg.Email))
	if err != nil {
		return nil, toConnectError(err)
	}

	if err := s.store.AddGroupMember(ctx, req.Msg.GroupID, user.ID); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			err = errAlreadyMember
		}
		s.logger.WarnContext(ctx, "AddGroupMember failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	s.logger.InfoContext(ctx, "Member added", "group_id", group.ID, "user_id", user.ID)

	rg, err := s.toRPC(ctx, group)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpc.AddGroupMemberResponse{Group: rg}), nil
}

// LeaveGroup removes the caller from a group. The creator cannot leave.
// Past expenses keep referencing the departed member, who then drops out of
// the group's balances.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[rpc.LeaveGroupRequest]) (*connect.Response[rpc.LeaveGroupResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "LeaveGroup request received", "group_id", req.Msg.GroupID)

	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if group.CreatedBy == userID {
		return nil, toConnectError(errCreatorLeaving)
	}

	if err := s.store.RemoveGroupMember(ctx, group.ID, userID); err != nil {
		s.logger.ErrorContext(ctx, "LeaveGroup failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.InfoContext(ctx, "Member left group", "group_id", group.ID, "user_id", userID)
	return connect.NewResponse(&rpc.LeaveGroupResponse{}), nil
}

// DeleteGroup removes a group with all of its expenses. Creator only.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[rpc.DeleteGroupRequest]) (*connect.Response[rpc.DeleteGroupResponse], error) {
	userID := middleware.GetUserID(ctx)
	s.logger.InfoContext(ctx, "DeleteGroup request received", "group_id", req.Msg.GroupID)

	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if group.CreatedBy != userID {
		return nil, toConnectError(errCreatorOnly)
	}

	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		s.logger.ErrorContext(ctx, "DeleteGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	s.logger.InfoContext(ctx, "Group deleted", "group_id", group.ID)
	return connect.NewResponse(&rpc.DeleteGroupResponse{}), nil
}

func (s *GroupService) toRPC(ctx context.Context, group *models.Group) (*rpc.Group, error) {
	d, err := loadDirectory(ctx, s.store, append([]string{group.CreatedBy}, group.Members...))
	if err != nil {
		return nil, err
	}
	return toRPCGroup(group, d), nil
}

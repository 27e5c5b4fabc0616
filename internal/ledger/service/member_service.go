package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

// MemberService 成员登记
type MemberService struct {
	repos  domain.Repositories
	logger *zap.Logger
}

func NewMemberService(repos domain.Repositories, logger *zap.Logger) *MemberService {
	return &MemberService{repos: repos, logger: logger}
}

// Register 新成员默认在册，角色为空时按 viewer 处理
func (s *MemberService) Register(ctx context.Context, name string, role domain.Role) (*domain.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if role == "" {
		role = domain.RoleViewer
	}
	if !role.IsValid() {
		return nil, &domain.ValidationError{Field: "role", Reason: string(role)}
	}
	m := domain.NewMember(name, role)
	if err := s.repos.Members.Create(ctx, nil, m); err != nil {
		return nil, err
	}
	s.logger.Info("member registered", zap.Int64("member_id", m.ID), zap.String("role", string(role)))
	return m, nil
}

// Active 在册成员
func (s *MemberService) Active(ctx context.Context) ([]domain.Member, error) {
	return s.repos.Members.ListActive(ctx, nil)
}

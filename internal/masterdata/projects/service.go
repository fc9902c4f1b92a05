package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	if id <= 0 {
		return Project{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, project Project) (Project, error) {
	if err := validate(project); err != nil {
		return Project{}, err
	}
	project.IsActive = true
	return s.repo.Create(ctx, project)
}

func (s *Service) Update(ctx context.Context, id int64, project Project) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validate(project); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, project)
}

func validate(project Project) error {
	if strings.TrimSpace(project.Code) == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return nil
}

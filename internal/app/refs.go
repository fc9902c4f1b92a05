package app

import (
	"context"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/projects"
	"github.com/sitedesk-erp/sitedesk/internal/masterdata/suppliers"
	"github.com/sitedesk-erp/sitedesk/internal/procure"
	"github.com/sitedesk-erp/sitedesk/internal/users"
)

// References adapts the master data and user services to the lookup port the
// workflow renders documents with.
type References struct {
	Projects  *projects.Service
	Suppliers *suppliers.Service
	Users     *users.Service
}

var _ procure.ReferencePort = (*References)(nil)

func (r *References) Project(ctx context.Context, id int64) (procure.ProjectInfo, error) {
	p, err := r.Projects.Get(ctx, id)
	if err != nil {
		return procure.ProjectInfo{}, err
	}
	return procure.ProjectInfo{ID: p.ID, Code: p.Code, Name: p.Name, SiteAddress: p.SiteAddress}, nil
}

func (r *References) Supplier(ctx context.Context, id int64) (procure.SupplierInfo, error) {
	s, err := r.Suppliers.Get(ctx, id)
	if err != nil {
		return procure.SupplierInfo{}, err
	}
	return procure.SupplierInfo{ID: s.ID, Code: s.Code, Name: s.Name, Email: s.Email}, nil
}

func (r *References) User(ctx context.Context, id int64) (procure.UserInfo, error) {
	u, err := r.Users.GetUser(ctx, id)
	if err != nil {
		return procure.UserInfo{}, err
	}
	return procure.UserInfo{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

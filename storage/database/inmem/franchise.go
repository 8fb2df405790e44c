package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

type franchiseRepository struct {
	db *franchiseTable
}

func NewFranchiseRepository(db *DB) franchise.Repository {
	return &franchiseRepository{db: db.franchise}
}

func (repo *franchiseRepository) query() []franchise.Franchise {
	fs := make([]franchise.Franchise, 0, len(repo.db.table))
	for _, f := range repo.db.table {
		fs = append(fs, *f)
	}
	return fs
}

func (repo *franchiseRepository) CheckUniqueness(ctx context.Context, email, mobile string, excluded ...franchise.Franchise) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, f := range repo.query() {
		if isExcluded(f, excluded) {
			continue
		}
		if f.Email == email {
			return franchise.ErrEmailExists
		}
		if f.Mobile == mobile {
			return franchise.ErrMobileExists
		}
	}
	return nil
}

func (repo *franchiseRepository) FranchiseIDExists(ctx context.Context, fid string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, f := range repo.db.table {
		if f.FranchiseID == fid {
			return true, nil
		}
	}
	return false, nil
}

func (repo *franchiseRepository) CreateFranchise(ctx context.Context, f franchise.Franchise) (franchise.Franchise, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if f.FranchiseID != "" && existing.FranchiseID == f.FranchiseID {
			return franchise.Franchise{}, franchise.ErrFranchiseIDExists
		}
		if existing.Email == f.Email {
			return franchise.Franchise{}, franchise.ErrEmailExists
		}
		if existing.Mobile == f.Mobile {
			return franchise.Franchise{}, franchise.ErrMobileExists
		}
	}

	f.ID = uuid.New().String()
	repo.db.table[f.ID] = &f
	return f, nil
}

func (repo *franchiseRepository) GetFranchiseByID(ctx context.Context, id string) (franchise.Franchise, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return *f, nil
	}
	return franchise.Franchise{}, franchise.ErrNotFound
}

func (repo *franchiseRepository) QueryFranchises(ctx context.Context, filter *franchise.QueryFilter, ordering []core.DBOrdering) ([]franchise.Franchise, error) {
	repo.db.RLock()
	fs := repo.query()
	repo.db.RUnlock()

	if filter != nil && !filter.IsEmpty() {
		matched := fs[:0]
		for _, f := range fs {
			if matches(f, filter) {
				matched = append(matched, f)
			}
		}
		fs = matched
	}

	order(fs, ordering)
	return fs, nil
}

func (repo *franchiseRepository) UpdateFranchise(ctx context.Context, f franchise.Franchise) (franchise.Franchise, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[f.ID]
	if !ok {
		return franchise.Franchise{}, franchise.ErrNotFound
	}
	for _, existing := range repo.db.table {
		if existing.ID == f.ID {
			continue
		}
		if f.FranchiseID != "" && existing.FranchiseID == f.FranchiseID {
			return franchise.Franchise{}, franchise.ErrFranchiseIDExists
		}
		if existing.Email == f.Email {
			return franchise.Franchise{}, franchise.ErrEmailExists
		}
		if existing.Mobile == f.Mobile {
			return franchise.Franchise{}, franchise.ErrMobileExists
		}
	}

	f.CreatedAt = orig.CreatedAt
	repo.db.table[f.ID] = &f
	return f, nil
}

func (repo *franchiseRepository) DeleteFranchise(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return franchise.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func matches(f franchise.Franchise, filter *franchise.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(f.Name), s) &&
			!strings.Contains(strings.ToLower(f.Owner), s) &&
			!strings.Contains(strings.ToLower(f.Email), s) {
			return false
		}
	}
	if filter.Status != "" && f.Status != filter.Status {
		return false
	}
	if filter.VerificationStatus != "" && f.VerificationStatus != filter.VerificationStatus {
		return false
	}
	if filter.ApplicationType != "" && f.ApplicationType != filter.ApplicationType {
		return false
	}
	if !filter.RequestedFrom.IsZero() && f.RequestDate.Before(filter.RequestedFrom) {
		return false
	}
	if !filter.RequestedTo.IsZero() && f.RequestDate.After(filter.RequestedTo) {
		return false
	}
	if filter.NotLive && f.IsLive() {
		return false
	}
	return true
}

func order(fs []franchise.Franchise, ordering []core.DBOrdering) {
	less := func(a, b franchise.Franchise) bool { return a.CreatedAt.After(b.CreatedAt) }
	if len(ordering) > 0 {
		ord := ordering[0]
		switch ord.Field {
		case "name":
			less = func(a, b franchise.Franchise) bool { return (a.Name < b.Name) == ord.Ascending }
		case "owner":
			less = func(a, b franchise.Franchise) bool { return (a.Owner < b.Owner) == ord.Ascending }
		case "request_date":
			less = func(a, b franchise.Franchise) bool { return a.RequestDate.Before(b.RequestDate) == ord.Ascending }
		case "created_at":
			less = func(a, b franchise.Franchise) bool { return a.CreatedAt.Before(b.CreatedAt) == ord.Ascending }
		}
	}
	sort.Slice(fs, func(i, j int) bool { return less(fs[i], fs[j]) })
}

func isExcluded(f franchise.Franchise, excluded []franchise.Franchise) bool {
	for _, ex := range excluded {
		if ex.ID == f.ID {
			return true
		}
	}
	return false
}

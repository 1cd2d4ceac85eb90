package store

import (
	"context"
	"errors"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"

	"gorm.io/gorm"
)

// GormStore implements Store on top of a gorm/postgres connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps a gorm error to the core taxonomy. Anything that is not a
// recognized constraint failure is treated as the store being unavailable.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("record already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("record not found")
	default:
		return apperr.StoreUnavailable(err)
	}
}

func (s *GormStore) FindUserByUsername(username string) (*model.User, error) {
	var user model.User
	result := s.db.Where("username = ?", username).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &user, nil
}

func (s *GormStore) FindUserByID(id uint) (*model.User, error) {
	var user model.User
	result := s.db.First(&user, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &user, nil
}

func (s *GormStore) CreateUser(user *model.User) error {
	if result := s.db.Create(user); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("username already exists")
		}
		return translate(result.Error)
	}
	return nil
}

func (s *GormStore) ListUsers() ([]model.User, error) {
	var users []model.User
	if result := s.db.Order("created_at DESC").Find(&users); result.Error != nil {
		return nil, translate(result.Error)
	}
	return users, nil
}

func (s *GormStore) FindBrandByID(id uint) (*model.Brand, error) {
	var brand model.Brand
	result := s.db.First(&brand, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &brand, nil
}

func (s *GormStore) AllBrands() ([]model.Brand, error) {
	var brands []model.Brand
	if result := s.db.Order("created_at DESC").Find(&brands); result.Error != nil {
		return nil, translate(result.Error)
	}
	return brands, nil
}

func (s *GormStore) BrandsByIDs(ids []uint) ([]model.Brand, error) {
	var brands []model.Brand
	if len(ids) == 0 {
		return brands, nil
	}
	if result := s.db.Where("id IN ?", ids).Order("created_at DESC").Find(&brands); result.Error != nil {
		return nil, translate(result.Error)
	}
	return brands, nil
}

func (s *GormStore) CreateBrand(brand *model.Brand) error {
	if result := s.db.Create(brand); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("brand name already exists")
		}
		return translate(result.Error)
	}
	return nil
}

func (s *GormStore) UpdateBrand(brand *model.Brand) error {
	result := s.db.Model(&model.Brand{}).Where("id = ?", brand.ID).
		Updates(map[string]interface{}{
			"name":             brand.Name,
			"master_outlet_id": brand.MasterOutletID,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("brand name already exists")
		}
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("brand not found")
	}
	return nil
}

// DeleteBrand removes dependent allocations and the brand row in one
// transaction. A dangling allocation would silently grant or deny access, so
// the cascade is not an optional cleanup step.
func (s *GormStore) DeleteBrand(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("brand_id = ?", id).Delete(&model.Allocation{}); result.Error != nil {
			return result.Error
		}
		result := tx.Delete(&model.Brand{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("brand not found")
		}
		return nil
	})
	if err != nil {
		var coded *apperr.Error
		if errors.As(err, &coded) {
			return err
		}
		return translate(err)
	}
	return nil
}

// CreateAllocation relies on the composite unique index on (user_id,
// brand_id): a duplicate pair is rejected by the store, not by a
// check-then-insert race in application code.
func (s *GormStore) CreateAllocation(alloc *model.Allocation) error {
	if result := s.db.Create(alloc); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("brand already allocated to user")
		}
		return translate(result.Error)
	}
	return nil
}

func (s *GormStore) DeleteAllocation(userID, brandID uint) error {
	result := s.db.Where("user_id = ? AND brand_id = ?", userID, brandID).Delete(&model.Allocation{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("allocation not found")
	}
	return nil
}

func (s *GormStore) BrandIDsForUser(userID uint) ([]uint, error) {
	var ids []uint
	result := s.db.Model(&model.Allocation{}).Where("user_id = ?", userID).Pluck("brand_id", &ids)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return ids, nil
}

func (s *GormStore) BrandsForUser(userID uint) ([]AllocatedBrand, error) {
	var brands []AllocatedBrand
	result := s.db.Table("allocations a").
		Select("b.id AS brand_id, b.name AS brand_name, b.master_outlet_id, a.created_at AS allocated_at").
		Joins("JOIN brands b ON b.id = a.brand_id AND b.deleted_at IS NULL").
		Where("a.user_id = ?", userID).
		Order("a.created_at DESC").
		Scan(&brands)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return brands, nil
}

func (s *GormStore) UsersForBrand(brandID uint) ([]AllocatedUser, error) {
	var users []AllocatedUser
	result := s.db.Table("allocations a").
		Select("u.id AS user_id, u.username, u.email, a.created_at AS allocated_at").
		Joins("JOIN users u ON u.id = a.user_id AND u.deleted_at IS NULL").
		Where("a.brand_id = ?", brandID).
		Order("a.created_at DESC").
		Scan(&users)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return users, nil
}

// scopedEvents is the single filter-composition routine behind listing,
// aggregation and export. Every query shape over login events starts here;
// nothing else may build its own WHERE clause over the scope.
func (s *GormStore) scopedEvents(sc scope.Scope) *gorm.DB {
	q := s.db.Model(&model.LoginEvent{})
	if sc.BrandID != nil {
		q = q.Where("login_events.brand_id = ?", *sc.BrandID)
	}
	if !sc.AllBrands {
		// An empty allocation set composes to a predicate matching nothing.
		// Events without a brand never match a non-admin scope.
		q = q.Where("login_events.brand_id IN ?", sc.BrandIDs)
	}
	if sc.StartDate != nil {
		q = q.Where("login_events.login_date >= ?", *sc.StartDate)
	}
	if sc.EndDate != nil {
		q = q.Where("login_events.login_date <= ?", *sc.EndDate)
	}
	return q
}

const eventColumns = "login_events.id, login_events.brand_id, " +
	"COALESCE(b.name, '') AS brand_name, COALESCE(b.master_outlet_id, '') AS master_outlet_id, " +
	"login_events.store_id, login_events.client_store_id, " +
	"login_events.manager_name, login_events.manager_number, " +
	"login_events.login_type, login_events.login_date"

func (s *GormStore) ListEvents(sc scope.Scope, limit, offset int) ([]EventRow, error) {
	var rows []EventRow
	q := s.scopedEvents(sc).
		Select(eventColumns).
		Joins("LEFT JOIN brands b ON b.id = login_events.brand_id AND b.deleted_at IS NULL").
		Order("login_events.login_date DESC, login_events.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if result := q.Scan(&rows); result.Error != nil {
		return nil, translate(result.Error)
	}
	for i := range rows {
		rows[i].Date = rows[i].LoginDate.Format(model.DateLayout)
	}
	return rows, nil
}

const summaryColumns = "COUNT(*) AS total_logins, " +
	"COUNT(DISTINCT login_events.store_id) AS unique_stores, " +
	"COUNT(DISTINCT login_events.manager_number) AS unique_managers, " +
	"COALESCE(SUM(CASE WHEN login_events.login_type = 'parent' THEN 1 ELSE 0 END), 0) AS parent_logins, " +
	"COALESCE(SUM(CASE WHEN login_events.login_type = 'team_member' THEN 1 ELSE 0 END), 0) AS team_member_logins"

func (s *GormStore) Summarize(sc scope.Scope) (*Summary, error) {
	var summary Summary
	if result := s.scopedEvents(sc).Select(summaryColumns).Scan(&summary); result.Error != nil {
		return nil, translate(result.Error)
	}
	return &summary, nil
}

func (s *GormStore) DailySummaries(sc scope.Scope) ([]DailySummary, error) {
	var rows []DailySummary
	result := s.scopedEvents(sc).
		Select("login_events.login_date, " + summaryColumns).
		Group("login_events.login_date").
		Order("login_events.login_date DESC").
		Scan(&rows)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	for i := range rows {
		rows[i].Date = rows[i].LoginDate.Format(model.DateLayout)
	}
	return rows, nil
}

// BrandSummaries applies the scope to the brand set first and left-joins the
// event counts, so a visible brand with no events in range still gets a zero
// row. The date filters live in the join condition for the same reason.
func (s *GormStore) BrandSummaries(sc scope.Scope) ([]BrandSummary, error) {
	q := s.db.Table("brands b").Where("b.deleted_at IS NULL")
	if sc.BrandID != nil {
		q = q.Where("b.id = ?", *sc.BrandID)
	}
	if !sc.AllBrands {
		q = q.Where("b.id IN ?", sc.BrandIDs)
	}

	joinSQL := "LEFT JOIN login_events e ON e.brand_id = b.id"
	var joinArgs []interface{}
	if sc.StartDate != nil {
		joinSQL += " AND e.login_date >= ?"
		joinArgs = append(joinArgs, *sc.StartDate)
	}
	if sc.EndDate != nil {
		joinSQL += " AND e.login_date <= ?"
		joinArgs = append(joinArgs, *sc.EndDate)
	}

	var rows []BrandSummary
	result := q.Joins(joinSQL, joinArgs...).
		Select("b.id AS brand_id, b.name AS brand_name, b.master_outlet_id, " +
			"COUNT(e.id) AS total_logins, " +
			"COUNT(DISTINCT e.store_id) AS unique_stores, " +
			"COUNT(DISTINCT e.manager_number) AS unique_managers, " +
			"COALESCE(SUM(CASE WHEN e.login_type = 'parent' THEN 1 ELSE 0 END), 0) AS parent_logins, " +
			"COALESCE(SUM(CASE WHEN e.login_type = 'team_member' THEN 1 ELSE 0 END), 0) AS team_member_logins").
		Group("b.id, b.name, b.master_outlet_id").
		Order("total_logins DESC, b.name ASC").
		Scan(&rows)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return rows, nil
}

// StreamEvents pages through the scoped row set in ListEvents order, calling
// fn per batch. Cancellation stops row production before the next batch is
// fetched, so a disconnected consumer never forces the full result set to be
// buffered.
func (s *GormStore) StreamEvents(ctx context.Context, sc scope.Scope, batchSize int, fn func([]EventRow) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var rows []EventRow
		q := s.scopedEvents(sc).WithContext(ctx).
			Select(eventColumns).
			Joins("LEFT JOIN brands b ON b.id = login_events.brand_id AND b.deleted_at IS NULL").
			Order("login_events.login_date DESC, login_events.id DESC").
			Limit(batchSize).
			Offset(offset)
		if result := q.Scan(&rows); result.Error != nil {
			return translate(result.Error)
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].Date = rows[i].LoginDate.Format(model.DateLayout)
		}
		if err := fn(rows); err != nil {
			return err
		}
		if len(rows) < batchSize {
			return nil
		}
		offset += batchSize
	}
}

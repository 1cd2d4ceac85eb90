package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"
)

// MemoryStore is an in-memory Store with the same contract as GormStore.
// It filters events through scope.Scope.Matches, the predicate form of the
// SQL composition in GormStore, which keeps the two definitions honest
// against each other in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uint]*model.User
	brands      map[uint]*model.Brand
	allocations []*model.Allocation
	events      []*model.LoginEvent
	nextID      uint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uint]*model.User),
		brands: make(map[uint]*model.Brand),
		nextID: 1,
	}
}

func (s *MemoryStore) allocateID() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) FindUserByUsername(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindUserByID(id uint) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) CreateUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return apperr.Conflict("username already exists")
		}
	}
	if user.ID == 0 {
		user.ID = s.allocateID()
	}
	user.CreatedAt = time.Now()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *MemoryStore) DeleteUser(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (s *MemoryStore) FindBrandByID(id uint) (*model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brands[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (s *MemoryStore) AllBrands() ([]model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brands := make([]model.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		brands = append(brands, *b)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].ID > brands[j].ID })
	return brands, nil
}

func (s *MemoryStore) BrandsByIDs(ids []uint) ([]model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var brands []model.Brand
	for _, id := range ids {
		if b, ok := s.brands[id]; ok {
			brands = append(brands, *b)
		}
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].ID > brands[j].ID })
	return brands, nil
}

func (s *MemoryStore) CreateBrand(brand *model.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brands {
		if b.Name == brand.Name {
			return apperr.Conflict("brand name already exists")
		}
	}
	if brand.ID == 0 {
		brand.ID = s.allocateID()
	}
	brand.CreatedAt = time.Now()
	copied := *brand
	s.brands[brand.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateBrand(brand *model.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.brands[brand.ID]
	if !ok {
		return apperr.NotFound("brand not found")
	}
	for _, b := range s.brands {
		if b.ID != brand.ID && b.Name == brand.Name {
			return apperr.Conflict("brand name already exists")
		}
	}
	existing.Name = brand.Name
	existing.MasterOutletID = brand.MasterOutletID
	return nil
}

func (s *MemoryStore) DeleteBrand(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[id]; !ok {
		return apperr.NotFound("brand not found")
	}
	delete(s.brands, id)
	kept := s.allocations[:0]
	for _, a := range s.allocations {
		if a.BrandID != id {
			kept = append(kept, a)
		}
	}
	s.allocations = kept
	return nil
}

func (s *MemoryStore) CreateAllocation(alloc *model.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.allocations {
		if a.UserID == alloc.UserID && a.BrandID == alloc.BrandID {
			return apperr.Conflict("brand already allocated to user")
		}
	}
	if alloc.ID == 0 {
		alloc.ID = s.allocateID()
	}
	alloc.CreatedAt = time.Now()
	copied := *alloc
	s.allocations = append(s.allocations, &copied)
	return nil
}

func (s *MemoryStore) DeleteAllocation(userID, brandID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.allocations {
		if a.UserID == userID && a.BrandID == brandID {
			s.allocations = append(s.allocations[:i], s.allocations[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("allocation not found")
}

func (s *MemoryStore) BrandIDsForUser(userID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uint
	for _, a := range s.allocations {
		if a.UserID == userID {
			ids = append(ids, a.BrandID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) BrandsForUser(userID uint) ([]AllocatedBrand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var brands []AllocatedBrand
	for _, a := range s.allocations {
		if a.UserID != userID {
			continue
		}
		b, ok := s.brands[a.BrandID]
		if !ok {
			continue
		}
		brands = append(brands, AllocatedBrand{
			BrandID:        b.ID,
			BrandName:      b.Name,
			MasterOutletID: b.MasterOutletID,
			AllocatedAt:    a.CreatedAt,
		})
	}
	return brands, nil
}

func (s *MemoryStore) UsersForBrand(brandID uint) ([]AllocatedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []AllocatedUser
	for _, a := range s.allocations {
		if a.BrandID != brandID {
			continue
		}
		u, ok := s.users[a.UserID]
		if !ok {
			continue
		}
		users = append(users, AllocatedUser{
			UserID:      u.ID,
			Username:    u.Username,
			Email:       u.Email,
			AllocatedAt: a.CreatedAt,
		})
	}
	return users, nil
}

// AddEvent appends a login event, assigning an id.
func (s *MemoryStore) AddEvent(event *model.LoginEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == 0 {
		event.ID = s.allocateID()
	}
	copied := *event
	s.events = append(s.events, &copied)
}

// filteredEvents is the single composition point mirroring
// GormStore.scopedEvents: every event read goes through it.
func (s *MemoryStore) filteredEvents(sc scope.Scope) []*model.LoginEvent {
	var matched []*model.LoginEvent
	for _, e := range s.events {
		if sc.Matches(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].LoginDate.Equal(matched[j].LoginDate) {
			return matched[i].LoginDate.After(matched[j].LoginDate)
		}
		return matched[i].ID > matched[j].ID
	})
	return matched
}

func (s *MemoryStore) rowFor(e *model.LoginEvent) EventRow {
	row := EventRow{
		ID:            e.ID,
		BrandID:       e.BrandID,
		StoreID:       e.StoreID,
		ClientStoreID: e.ClientStoreID,
		ManagerName:   e.ManagerName,
		ManagerNumber: e.ManagerNumber,
		LoginType:     e.LoginType,
		LoginDate:     e.LoginDate,
		Date:          e.LoginDate.Format(model.DateLayout),
	}
	if e.BrandID != nil {
		if b, ok := s.brands[*e.BrandID]; ok {
			row.BrandName = b.Name
			row.MasterOutletID = b.MasterOutletID
		}
	}
	return row
}

func (s *MemoryStore) ListEvents(sc scope.Scope, limit, offset int) ([]EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.filteredEvents(sc)
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	rows := make([]EventRow, 0, len(matched))
	for _, e := range matched {
		rows = append(rows, s.rowFor(e))
	}
	return rows, nil
}

func (s *MemoryStore) Summarize(sc scope.Scope) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := &Summary{}
	stores := make(map[string]struct{})
	managers := make(map[string]struct{})
	for _, e := range s.filteredEvents(sc) {
		summary.TotalLogins++
		stores[e.StoreID] = struct{}{}
		managers[e.ManagerNumber] = struct{}{}
		switch e.LoginType {
		case model.LoginTypeParent:
			summary.ParentLogins++
		case model.LoginTypeTeamMember:
			summary.TeamMemberLogins++
		}
	}
	summary.UniqueStores = int64(len(stores))
	summary.UniqueManagers = int64(len(managers))
	return summary, nil
}

func (s *MemoryStore) DailySummaries(sc scope.Scope) ([]DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDate := make(map[time.Time]*DailySummary)
	stores := make(map[time.Time]map[string]struct{})
	managers := make(map[time.Time]map[string]struct{})
	for _, e := range s.filteredEvents(sc) {
		day, ok := byDate[e.LoginDate]
		if !ok {
			day = &DailySummary{LoginDate: e.LoginDate, Date: e.LoginDate.Format(model.DateLayout)}
			byDate[e.LoginDate] = day
			stores[e.LoginDate] = make(map[string]struct{})
			managers[e.LoginDate] = make(map[string]struct{})
		}
		day.TotalLogins++
		stores[e.LoginDate][e.StoreID] = struct{}{}
		managers[e.LoginDate][e.ManagerNumber] = struct{}{}
		switch e.LoginType {
		case model.LoginTypeParent:
			day.ParentLogins++
		case model.LoginTypeTeamMember:
			day.TeamMemberLogins++
		}
	}
	var rows []DailySummary
	for date, day := range byDate {
		day.UniqueStores = int64(len(stores[date]))
		day.UniqueManagers = int64(len(managers[date]))
		rows = append(rows, *day)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LoginDate.After(rows[j].LoginDate) })
	return rows, nil
}

func (s *MemoryStore) BrandSummaries(sc scope.Scope) ([]BrandSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := func(id uint) bool {
		if sc.BrandID != nil && *sc.BrandID != id {
			return false
		}
		if sc.AllBrands {
			return true
		}
		for _, allocated := range sc.BrandIDs {
			if allocated == id {
				return true
			}
		}
		return false
	}

	rows := make(map[uint]*BrandSummary)
	stores := make(map[uint]map[string]struct{})
	managers := make(map[uint]map[string]struct{})
	for id, b := range s.brands {
		if !visible(id) {
			continue
		}
		rows[id] = &BrandSummary{BrandID: id, BrandName: b.Name, MasterOutletID: b.MasterOutletID}
		stores[id] = make(map[string]struct{})
		managers[id] = make(map[string]struct{})
	}
	for _, e := range s.filteredEvents(sc) {
		if e.BrandID == nil {
			continue
		}
		row, ok := rows[*e.BrandID]
		if !ok {
			continue
		}
		row.TotalLogins++
		stores[*e.BrandID][e.StoreID] = struct{}{}
		managers[*e.BrandID][e.ManagerNumber] = struct{}{}
		switch e.LoginType {
		case model.LoginTypeParent:
			row.ParentLogins++
		case model.LoginTypeTeamMember:
			row.TeamMemberLogins++
		}
	}

	var result []BrandSummary
	for id, row := range rows {
		row.UniqueStores = int64(len(stores[id]))
		row.UniqueManagers = int64(len(managers[id]))
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalLogins != result[j].TotalLogins {
			return result[i].TotalLogins > result[j].TotalLogins
		}
		return result[i].BrandName < result[j].BrandName
	})
	return result, nil
}

func (s *MemoryStore) StreamEvents(ctx context.Context, sc scope.Scope, batchSize int, fn func([]EventRow) error) error {
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
		rows, err := s.ListEvents(sc, batchSize, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
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

// Package memory is an in-process store with the same contract as the
// Postgres repository. A single mutex makes every check-and-write atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticketflow/internal/model"
	"ticketflow/pkg/validator"
)

type Store struct {
	mu sync.Mutex

	events        map[string]*model.Event
	categories    map[string]*model.Category
	registrations map[string]*model.Registration
	users         map[string]*model.User
	coupons       map[string]*model.Coupon
	usages        map[string]*model.CouponUsage
	photos        map[string]*model.Photo
	tiers         map[string][]model.PriceTier
	packages      map[string][]model.PhotoPackage
	orders        map[string]*model.PhotoOrder
	orderItems    map[string][]model.PhotoOrderItem

	now func() time.Time
}

func New() *Store {
	return &Store{
		events:        make(map[string]*model.Event),
		categories:    make(map[string]*model.Category),
		registrations: make(map[string]*model.Registration),
		users:         make(map[string]*model.User),
		coupons:       make(map[string]*model.Coupon),
		usages:        make(map[string]*model.CouponUsage),
		photos:        make(map[string]*model.Photo),
		tiers:         make(map[string][]model.PriceTier),
		packages:      make(map[string][]model.PhotoPackage),
		orders:        make(map[string]*model.PhotoOrder),
		orderItems:    make(map[string][]model.PhotoOrderItem),
		now:           time.Now,
	}
}

func (s *Store) Ping(context.Context) error        { return nil }
func (s *Store) MigrateUp(context.Context) error   { return nil }
func (s *Store) MigrateDown(context.Context) error { return nil }

// Seeding helpers. They store copies and fill in missing ids.

func (s *Store) AddEvent(e model.Event) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.events[e.ID] = &e
	cp := e
	return &cp
}

func (s *Store) AddCategory(c model.Category) *model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories[c.ID] = &c
	cp := c
	return &cp
}

func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = validator.NormalizeEmail(u.Email)
	s.users[u.ID] = &u
	cp := u
	return &cp
}

func (s *Store) AddCoupon(c model.Coupon) *model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.coupons[c.ID] = &c
	cp := c
	return &cp
}

func (s *Store) AddPhoto(p model.Photo) *model.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.photos[p.ID] = &p
	cp := p
	return &cp
}

func (s *Store) SetPhotoPricing(eventID string, tiers []model.PriceTier, packages []model.PhotoPackage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[eventID] = append([]model.PriceTier(nil), tiers...)
	s.packages[eventID] = append([]model.PhotoPackage(nil), packages...)
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, model.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

// adjustCapacity mirrors the conditional counter update. Callers hold mu.
func (s *Store) adjustCapacity(eventID, categoryID string, delta int) error {
	if delta == 0 {
		return nil
	}
	c, ok := s.categories[categoryID]
	if !ok {
		return model.ErrCategoryNotFound
	}
	e, ok := s.events[eventID]
	if !ok {
		return model.ErrEventNotFound
	}
	if delta < 0 {
		c.CurrentParticipants = max(c.CurrentParticipants+delta, 0)
		e.CurrentParticipants = max(e.CurrentParticipants+delta, 0)
		return nil
	}
	if err := model.CheckCapacity(c.MaxParticipants, c.CurrentParticipants, delta, model.ErrCategoryFull); err != nil {
		return err
	}
	if err := model.CheckCapacity(e.MaxParticipants, e.CurrentParticipants, delta, model.ErrEventFull); err != nil {
		return err
	}
	c.CurrentParticipants += delta
	e.CurrentParticipants += delta
	return nil
}

func (s *Store) activeRegistration(userID, eventID, categoryID string) *model.Registration {
	for _, r := range s.registrations {
		if r.UserID == userID && r.EventID == eventID && r.CategoryID == categoryID && r.Status != model.StatusCancelled {
			return r
		}
	}
	return nil
}

func copyRegistration(r *model.Registration) *model.Registration {
	cp := *r
	if r.RegistrationData != nil {
		rd := *r.RegistrationData
		cp.RegistrationData = &rd
	}
	return &cp
}

func (s *Store) CreateOrReuse(_ context.Context, in model.ReservationInput) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var partnerName string
	if in.Partner != nil {
		partnerName = in.Partner.Name
	}

	reg := s.activeRegistration(in.UserID, in.EventID, in.CategoryID)
	if reg != nil {
		if reg.IsConfirmedPaid() {
			return copyRegistration(reg), nil
		}
		if reg.Status != model.StatusPending {
			return nil, model.ErrConflictingState
		}
		if err := s.adjustCapacity(in.EventID, in.CategoryID, in.Units()-reg.CapacityUnits); err != nil {
			return nil, err
		}
	} else {
		if err := s.adjustCapacity(in.EventID, in.CategoryID, in.Units()); err != nil {
			return nil, err
		}
		reg = &model.Registration{
			ID:         uuid.NewString(),
			EventID:    in.EventID,
			CategoryID: in.CategoryID,
			UserID:     in.UserID,
			CreatedAt:  s.now(),
		}
		s.registrations[reg.ID] = reg
	}

	reg.Status = model.StatusPending
	reg.PaymentStatus = model.PaymentPending
	reg.AmountPaid = in.Amount
	reg.ShirtSize = in.ShirtSize
	reg.ShirtGender = in.ShirtGender
	reg.PartnerName = partnerName
	reg.IsPartnerRegistration = in.Partner != nil
	reg.CapacityUnits = in.Units()
	reg.RegistrationData = &model.RegistrationData{Participant: in.Participant, Partner: in.Partner}
	if in.SessionID != "" {
		reg.PaymentSessionID = in.SessionID
	}
	reg.UpdatedAt = s.now()

	if in.Partner != nil {
		s.upsertPartner(*in.Partner)
	}
	return copyRegistration(reg), nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, id string, upd model.StatusUpdate) (*model.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, false, model.ErrRegistrationNotFound
	}
	if (reg.Status == upd.Status && reg.PaymentStatus == upd.PaymentStatus) || reg.IsConfirmedPaid() {
		return copyRegistration(reg), false, nil
	}

	switch {
	case upd.Status == model.StatusCancelled && reg.Status != model.StatusCancelled:
		if err := s.adjustCapacity(reg.EventID, reg.CategoryID, -reg.CapacityUnits); err != nil {
			return nil, false, err
		}
	case reg.Status == model.StatusCancelled && upd.Status != model.StatusCancelled:
		if s.activeRegistration(reg.UserID, reg.EventID, reg.CategoryID) != nil {
			return nil, false, model.ErrConflictingState
		}
		if err := s.adjustCapacity(reg.EventID, reg.CategoryID, reg.CapacityUnits); err != nil {
			return nil, false, err
		}
	}

	reg.Status = upd.Status
	reg.PaymentStatus = upd.PaymentStatus
	if upd.TransactionID != "" {
		reg.PaymentTransactionID = upd.TransactionID
	}
	reg.UpdatedAt = s.now()
	return copyRegistration(reg), true, nil
}

func (s *Store) LinkPaymentSession(_ context.Context, id, sessionID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}
	if reg.Status != model.StatusPending {
		return nil, model.ErrConflictingState
	}
	reg.PaymentSessionID = sessionID
	reg.UpdatedAt = s.now()
	return copyRegistration(reg), nil
}

func (s *Store) SetTicketArtifact(_ context.Context, id, code, artifact string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok || reg.QRCode != "" {
		return false, nil
	}
	reg.TicketCode = code
	reg.QRCode = artifact
	reg.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) GetRegistration(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

func (s *Store) findRegistration(match func(*model.Registration) bool) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *model.Registration
	for _, r := range s.registrations {
		if match(r) && (found == nil || r.UpdatedAt.After(found.UpdatedAt)) {
			found = r
		}
	}
	if found == nil {
		return nil, model.ErrRegistrationNotFound
	}
	return copyRegistration(found), nil
}

func (s *Store) GetRegistrationBySession(_ context.Context, sessionID string) (*model.Registration, error) {
	return s.findRegistration(func(r *model.Registration) bool {
		return sessionID != "" && r.PaymentSessionID == sessionID
	})
}

func (s *Store) GetRegistrationByTransaction(_ context.Context, transactionID string) (*model.Registration, error) {
	return s.findRegistration(func(r *model.Registration) bool {
		return transactionID != "" && r.PaymentTransactionID == transactionID
	})
}

func (s *Store) FindActiveRegistration(_ context.Context, userID, eventID, categoryID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.activeRegistration(userID, eventID, categoryID)
	if reg == nil {
		return nil, model.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) userByEmail(email string) *model.User {
	email = validator.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByEmail(email)
	if u == nil {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateShadowUser(_ context.Context, email, name, passwordHash string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.userByEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        validator.NormalizeEmail(email),
		FullName:     name,
		PasswordHash: passwordHash,
		IsShadow:     true,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateContactProfile(_ context.Context, userID string, p model.ParticipantData, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	if p.Name != "" && (overwrite || u.FullName == "") {
		u.FullName = p.Name
	}
	if phone := validator.OnlyDigits(p.Phone); phone != "" && (overwrite || u.Phone == "") {
		u.Phone = phone
	}
	if u.CPF == "" {
		u.CPF = validator.OnlyDigits(p.CPF)
	}
	return nil
}

// upsertPartner keeps existing values and never replaces a stored CPF.
// Callers hold mu.
func (s *Store) upsertPartner(p model.ParticipantData) {
	email := validator.NormalizeEmail(p.Email)
	if email == "" {
		return
	}
	u := s.userByEmail(email)
	if u == nil {
		u = &model.User{ID: uuid.NewString(), Email: email, IsShadow: true, CreatedAt: s.now()}
		s.users[u.ID] = u
	}
	if u.FullName == "" {
		u.FullName = p.Name
	}
	if u.CPF == "" {
		u.CPF = validator.OnlyDigits(p.CPF)
	}
	if u.Phone == "" {
		u.Phone = validator.OnlyDigits(p.Phone)
	}
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if strings.EqualFold(c.Code, code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, model.ErrCouponNotFound
}

func (s *Store) HasCouponUsage(_ context.Context, couponID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usages[couponID+"/"+userID]
	return ok, nil
}

func (s *Store) RecordCouponUsage(_ context.Context, usage *model.CouponUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usage.CouponID + "/" + usage.UserID
	if _, ok := s.usages[key]; ok {
		return model.ErrCouponAlreadyUsed
	}
	c, ok := s.coupons[usage.CouponID]
	if !ok || (c.MaxUses != nil && c.UsedCount >= *c.MaxUses) {
		return model.ErrCouponInvalid
	}
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	usage.CreatedAt = s.now()
	cp := *usage
	s.usages[key] = &cp
	c.UsedCount++
	return nil
}

func (s *Store) DeleteCouponUsage(_ context.Context, couponID, userID, registrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := couponID + "/" + userID
	u, ok := s.usages[key]
	if !ok || u.RegistrationID != registrationID {
		return nil
	}
	delete(s.usages, key)
	if c, ok := s.coupons[couponID]; ok && c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

func (s *Store) GetPhotos(_ context.Context, eventID string, ids []string) ([]model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Photo
	for _, id := range ids {
		if p, ok := s.photos[id]; ok && p.EventID == eventID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) GetPriceTiers(_ context.Context, eventID string) ([]model.PriceTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiers := append([]model.PriceTier(nil), s.tiers[eventID]...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinQuantity < tiers[j].MinQuantity })
	return tiers, nil
}

func (s *Store) GetPhotoPackages(_ context.Context, eventID string) ([]model.PhotoPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PhotoPackage(nil), s.packages[eventID]...), nil
}

func (s *Store) CreatePhotoOrder(_ context.Context, o *model.PhotoOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) CreatePhotoOrderItems(_ context.Context, items []model.PhotoOrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		if _, ok := s.orders[items[i].OrderID]; !ok {
			return model.ErrPhotoOrderNotFound
		}
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		s.orderItems[items[i].OrderID] = append(s.orderItems[items[i].OrderID], items[i])
	}
	return nil
}

func (s *Store) DeletePhotoOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	delete(s.orderItems, id)
	return nil
}

func (s *Store) LinkPhotoOrderSession(_ context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != model.StatusPending {
		return model.ErrPhotoOrderNotFound
	}
	o.PaymentSessionID = sessionID
	o.UpdatedAt = s.now()
	return nil
}

func (s *Store) GetPhotoOrder(_ context.Context, id string) (*model.PhotoOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, model.ErrPhotoOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) GetPhotoOrderBySession(_ context.Context, sessionID string) (*model.PhotoOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if sessionID != "" && o.PaymentSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, model.ErrPhotoOrderNotFound
}

func (s *Store) PhotoOrderItems(orderID string) []model.PhotoOrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PhotoOrderItem(nil), s.orderItems[orderID]...)
}

func (s *Store) UpdatePhotoOrderStatus(_ context.Context, id string, upd model.StatusUpdate) (*model.PhotoOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, model.ErrPhotoOrderNotFound
	}
	if (o.Status == upd.Status && o.PaymentStatus == upd.PaymentStatus) || o.IsConfirmedPaid() {
		cp := *o
		return &cp, false, nil
	}
	o.Status = upd.Status
	o.PaymentStatus = upd.PaymentStatus
	if upd.TransactionID != "" {
		o.PaymentTransactionID = upd.TransactionID
	}
	o.UpdatedAt = s.now()
	cp := *o
	return &cp, true, nil
}

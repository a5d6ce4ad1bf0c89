package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"ticketflow/internal/model"
)

const (
	testEventID    = "0b7c5f0e-8d6a-4c59-9a53-5c3f1f6a0e01"
	testCategoryID = "5d1f3a2b-7e4c-4b8a-8f0d-2a6e9c1b3d02"
	testUserID     = "9e2d4c6b-1a3f-4e5d-b7c8-0f1e2d3c4b03"
	testRegID      = "c3a1b2d4-5e6f-4a7b-8c9d-0e1f2a3b4c04"
)

var regColumnNames = []string{
	"id", "event_id", "category_id", "user_id", "status", "payment_status", "amount_paid",
	"payment_session_id", "payment_transaction_id", "ticket_code", "qr_code",
	"shirt_size", "shirt_gender", "partner_name", "is_partner_registration",
	"capacity_units", "registration_data", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	log := zerolog.Nop()
	return &repository{db: &dbpg.DB{Master: db}, log: &log}, mock
}

func regRows(status model.RegistrationStatus, payment model.PaymentStatus, units int64) *sqlmock.Rows {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(regColumnNames).AddRow(
		testRegID, testEventID, testCategoryID, testUserID, string(status), string(payment), 110.0,
		nil, nil, nil, nil,
		"M", nil, nil, units == 2,
		units, nil, now, now,
	)
}

func noRegRows() *sqlmock.Rows {
	return sqlmock.NewRows(regColumnNames)
}

func reservation() model.ReservationInput {
	return model.ReservationInput{
		UserID:     testUserID,
		EventID:    testEventID,
		CategoryID: testCategoryID,
		ShirtSize:  "M",
		Amount:     110,
	}
}

const (
	acquireCategorySQL = `UPDATE categories SET current_participants = current_participants \+ \$2`
	acquireEventSQL    = `UPDATE events SET current_participants = current_participants \+ \$2`
	releaseCategorySQL = `UPDATE categories SET current_participants = GREATEST\(current_participants - \$2, 0\)`
	releaseEventSQL    = `UPDATE events SET current_participants = GREATEST\(current_participants - \$2, 0\)`
	lockActiveSQL      = `FROM registrations WHERE user_id = \$1 AND event_id = \$2 AND category_id = \$3 AND status <> 'cancelled' FOR UPDATE`
	lockByIDSQL        = `FROM registrations WHERE id = \$1 FOR UPDATE`
)

func TestAdjustCapacity(t *testing.T) {
	tests := []struct {
		name    string
		units   int
		limit   int64
		current int64
		wantErr error
	}{
		{name: "category full", units: 1, limit: 10, current: 10, wantErr: model.ErrCategoryFull},
		{name: "one slot left for a pair", units: 2, limit: 10, current: 9, wantErr: model.ErrInsufficientPairSlots},
		{name: "slot freed meanwhile still reported full", units: 1, limit: 10, current: 5, wantErr: model.ErrCategoryFull},
	}

	t.Run("both levels incremented", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(acquireCategorySQL).WithArgs(testCategoryID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(acquireEventSQL).WithArgs(testEventID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := r.withTx(context.Background(), func(tx *sql.Tx) error {
			return adjustCapacity(context.Background(), tx, testEventID, testCategoryID, 1)
		})
		assert.NoError(t, err)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockRepo(t)
			mock.ExpectBegin()
			mock.ExpectExec(acquireCategorySQL).WithArgs(testCategoryID, tt.units).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT max_participants, current_participants FROM categories WHERE id = \$1`).
				WithArgs(testCategoryID).
				WillReturnRows(sqlmock.NewRows([]string{"max_participants", "current_participants"}).AddRow(tt.limit, tt.current))
			mock.ExpectRollback()

			err := r.withTx(context.Background(), func(tx *sql.Tx) error {
				return adjustCapacity(context.Background(), tx, testEventID, testCategoryID, tt.units)
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("event full after category taken", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(acquireEventSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT max_participants, current_participants FROM events WHERE id = \$1`).
			WithArgs(testEventID).
			WillReturnRows(sqlmock.NewRows([]string{"max_participants", "current_participants"}).AddRow(int64(100), int64(100)))
		mock.ExpectRollback()

		err := r.withTx(context.Background(), func(tx *sql.Tx) error {
			return adjustCapacity(context.Background(), tx, testEventID, testCategoryID, 1)
		})
		assert.ErrorIs(t, err, model.ErrEventFull)
	})

	t.Run("missing category", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM categories WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"max_participants", "current_participants"}))
		mock.ExpectRollback()

		err := r.withTx(context.Background(), func(tx *sql.Tx) error {
			return adjustCapacity(context.Background(), tx, testEventID, testCategoryID, 1)
		})
		assert.ErrorIs(t, err, model.ErrCategoryNotFound)
	})
}

func TestCreateOrReuse_InsertsNewRow(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSQL).WithArgs(testUserID, testEventID, testCategoryID).WillReturnRows(noRegRows())
	mock.ExpectExec(acquireCategorySQL).WithArgs(testCategoryID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(acquireEventSQL).WithArgs(testEventID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO registrations`).WillReturnRows(regRows(model.StatusPending, model.PaymentPending, 1))
	mock.ExpectCommit()

	reg, err := r.CreateOrReuse(context.Background(), reservation())
	require.NoError(t, err)
	assert.Equal(t, testRegID, reg.ID)
	assert.Equal(t, model.StatusPending, reg.Status)
	assert.Equal(t, 1, reg.CapacityUnits)
}

func TestCreateOrReuse_ReusesLockedPendingRow(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSQL).WillReturnRows(regRows(model.StatusPending, model.PaymentFailed, 1))
	mock.ExpectQuery(`UPDATE registrations SET status = 'pending', payment_status = 'pending'`).
		WillReturnRows(regRows(model.StatusPending, model.PaymentPending, 1))
	mock.ExpectCommit()

	reg, err := r.CreateOrReuse(context.Background(), reservation())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, reg.PaymentStatus)
}

func TestCreateOrReuse_ConfirmedReturnedUnchanged(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSQL).WillReturnRows(regRows(model.StatusConfirmed, model.PaymentPaid, 1))
	mock.ExpectCommit()

	reg, err := r.CreateOrReuse(context.Background(), reservation())
	require.NoError(t, err)
	assert.True(t, reg.IsConfirmedPaid())
}

func TestCreateOrReuse_InsertRaceRetried(t *testing.T) {
	dup := &pq.Error{Code: uniqueViolation}

	t.Run("retry reuses the winner", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSQL).WillReturnRows(noRegRows())
		mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(acquireEventSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO registrations`).WillReturnError(dup)
		mock.ExpectRollback()

		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSQL).WillReturnRows(regRows(model.StatusPending, model.PaymentPending, 1))
		mock.ExpectQuery(`UPDATE registrations SET status = 'pending'`).WillReturnRows(regRows(model.StatusPending, model.PaymentPending, 1))
		mock.ExpectCommit()

		reg, err := r.CreateOrReuse(context.Background(), reservation())
		require.NoError(t, err)
		assert.Equal(t, testRegID, reg.ID)
	})

	t.Run("second loss is a conflict", func(t *testing.T) {
		r, mock := newMockRepo(t)
		for i := 0; i < 2; i++ {
			mock.ExpectBegin()
			mock.ExpectQuery(lockActiveSQL).WillReturnRows(noRegRows())
			mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(acquireEventSQL).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(`INSERT INTO registrations`).WillReturnError(dup)
			mock.ExpectRollback()
		}

		_, err := r.CreateOrReuse(context.Background(), reservation())
		assert.ErrorIs(t, err, model.ErrConflictingState)
	})
}

func TestCreateOrReuse_FullCategoryRollsBack(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSQL).WillReturnRows(noRegRows())
	mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM categories WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"max_participants", "current_participants"}).AddRow(int64(1), int64(1)))
	mock.ExpectRollback()

	_, err := r.CreateOrReuse(context.Background(), reservation())
	assert.Equal(t, model.CodeCategoryFull, model.CodeOf(err))
}

func TestUpdatePaymentStatus_CancelReleasesCapacity(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDSQL).WithArgs(testRegID).WillReturnRows(regRows(model.StatusPending, model.PaymentPending, 2))
	mock.ExpectExec(releaseCategorySQL).WithArgs(testCategoryID, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(releaseEventSQL).WithArgs(testEventID, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE registrations SET status = \$2, payment_status = \$3`).
		WillReturnRows(regRows(model.StatusCancelled, model.PaymentFailed, 2))
	mock.ExpectCommit()

	reg, changed, err := r.UpdatePaymentStatus(context.Background(), testRegID, model.StatusUpdate{
		Status:        model.StatusCancelled,
		PaymentStatus: model.PaymentFailed,
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusCancelled, reg.Status)
}

func TestUpdatePaymentStatus_LeavingCancelledRetakesCapacity(t *testing.T) {
	succeeded := model.StatusUpdate{Status: model.StatusConfirmed, PaymentStatus: model.PaymentPaid, TransactionID: "pi_1"}

	t.Run("slot available", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockByIDSQL).WillReturnRows(regRows(model.StatusCancelled, model.PaymentFailed, 1))
		mock.ExpectExec(acquireCategorySQL).WithArgs(testCategoryID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(acquireEventSQL).WithArgs(testEventID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE registrations SET status = \$2`).
			WithArgs(testRegID, model.StatusConfirmed, model.PaymentPaid, "pi_1").
			WillReturnRows(regRows(model.StatusConfirmed, model.PaymentPaid, 1))
		mock.ExpectCommit()

		reg, changed, err := r.UpdatePaymentStatus(context.Background(), testRegID, succeeded)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, reg.IsConfirmedPaid())
	})

	t.Run("slot taken by someone else", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockByIDSQL).WillReturnRows(regRows(model.StatusCancelled, model.PaymentFailed, 1))
		mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM categories WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"max_participants", "current_participants"}).AddRow(int64(1), int64(1)))
		mock.ExpectRollback()

		_, changed, err := r.UpdatePaymentStatus(context.Background(), testRegID, succeeded)
		assert.ErrorIs(t, err, model.ErrCategoryFull)
		assert.False(t, changed)
	})

	t.Run("active duplicate appeared", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockByIDSQL).WillReturnRows(regRows(model.StatusCancelled, model.PaymentFailed, 1))
		mock.ExpectExec(acquireCategorySQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(acquireEventSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE registrations SET status = \$2`).WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectRollback()

		_, _, err := r.UpdatePaymentStatus(context.Background(), testRegID, succeeded)
		assert.ErrorIs(t, err, model.ErrConflictingState)
	})
}

func TestUpdatePaymentStatus_ConfirmedNeverMoves(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDSQL).WillReturnRows(regRows(model.StatusConfirmed, model.PaymentPaid, 1))
	mock.ExpectCommit()

	reg, changed, err := r.UpdatePaymentStatus(context.Background(), testRegID, model.StatusUpdate{
		Status:        model.StatusCancelled,
		PaymentStatus: model.PaymentFailed,
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, reg.IsConfirmedPaid())
}

func TestUpdatePaymentStatus_NotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockByIDSQL).WillReturnRows(noRegRows())
	mock.ExpectRollback()

	_, _, err := r.UpdatePaymentStatus(context.Background(), testRegID, model.StatusUpdate{Status: model.StatusCancelled})
	assert.ErrorIs(t, err, model.ErrRegistrationNotFound)
}

func TestSetTicketArtifact_OnlyWhenEmpty(t *testing.T) {
	r, mock := newMockRepo(t)
	const query = `UPDATE registrations SET ticket_code = \$2, qr_code = \$3, updated_at = NOW\(\) WHERE id = \$1 AND qr_code IS NULL`
	mock.ExpectExec(query).WithArgs(testRegID, "NR-1", "data:image/png;base64,AAA").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(testRegID, "NR-1", "data:image/png;base64,BBB").WillReturnResult(sqlmock.NewResult(0, 0))

	set, err := r.SetTicketArtifact(context.Background(), testRegID, "NR-1", "data:image/png;base64,AAA")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = r.SetTicketArtifact(context.Background(), testRegID, "NR-1", "data:image/png;base64,BBB")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestRecordCouponUsage(t *testing.T) {
	usage := func() *model.CouponUsage {
		return &model.CouponUsage{CouponID: "coupon-1", UserID: testUserID, RegistrationID: testRegID, DiscountApplied: 10}
	}
	const (
		insertSQL    = `INSERT INTO coupon_usages`
		incrementSQL = `UPDATE coupons SET used_count = used_count \+ 1 WHERE id = \$1 AND \(max_uses IS NULL OR used_count < max_uses\)`
	)

	t.Run("recorded", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertSQL).WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectExec(incrementSQL).WithArgs("coupon-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		u := usage()
		require.NoError(t, r.RecordCouponUsage(context.Background(), u))
		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("second use by the same user", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertSQL).WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectRollback()

		assert.ErrorIs(t, r.RecordCouponUsage(context.Background(), usage()), model.ErrCouponAlreadyUsed)
	})

	t.Run("max uses reached", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertSQL).WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectExec(incrementSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, r.RecordCouponUsage(context.Background(), usage()), model.ErrCouponInvalid)
	})
}

func TestDeleteCouponUsage(t *testing.T) {
	const deleteSQL = `DELETE FROM coupon_usages WHERE coupon_id = \$1 AND user_id = \$2 AND registration_id = \$3`

	t.Run("usage released", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(deleteSQL).WithArgs("coupon-1", testUserID, testRegID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE coupons SET used_count = GREATEST\(used_count - 1, 0\)`).WithArgs("coupon-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, r.DeleteCouponUsage(context.Background(), "coupon-1", testUserID, testRegID))
	})

	t.Run("nothing to release", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(deleteSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.NoError(t, r.DeleteCouponUsage(context.Background(), "coupon-1", testUserID, testRegID))
	})
}

func TestUpdateContactProfile_PassesOverwriteFlag(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE users SET full_name = CASE WHEN \$5 OR full_name = ''`).
		WithArgs(testUserID, "Ana Souza", "11987654321", "52998224725", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.UpdateContactProfile(context.Background(), testUserID, model.ParticipantData{
		Name:  "Ana Souza",
		Phone: "(11) 98765-4321",
		CPF:   "529.982.247-25",
	}, false)
	assert.NoError(t, err)
}

package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"ticketflow/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

const uniqueViolation = "23505"

type Repository interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)

	CreateOrReuse(ctx context.Context, in model.ReservationInput) (*model.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.Registration, bool, error)
	LinkPaymentSession(ctx context.Context, id, sessionID string) (*model.Registration, error)
	SetTicketArtifact(ctx context.Context, id, code, artifact string) (bool, error)
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	GetRegistrationBySession(ctx context.Context, sessionID string) (*model.Registration, error)
	GetRegistrationByTransaction(ctx context.Context, transactionID string) (*model.Registration, error)
	FindActiveRegistration(ctx context.Context, userID, eventID, categoryID string) (*model.Registration, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateShadowUser(ctx context.Context, email, name, passwordHash string) (*model.User, error)
	UpdateContactProfile(ctx context.Context, userID string, p model.ParticipantData, overwrite bool) error

	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	HasCouponUsage(ctx context.Context, couponID, userID string) (bool, error)
	RecordCouponUsage(ctx context.Context, usage *model.CouponUsage) error
	DeleteCouponUsage(ctx context.Context, couponID, userID, registrationID string) error

	GetPhotos(ctx context.Context, eventID string, ids []string) ([]model.Photo, error)
	GetPriceTiers(ctx context.Context, eventID string) ([]model.PriceTier, error)
	GetPhotoPackages(ctx context.Context, eventID string) ([]model.PhotoPackage, error)
	CreatePhotoOrder(ctx context.Context, o *model.PhotoOrder) error
	CreatePhotoOrderItems(ctx context.Context, items []model.PhotoOrderItem) error
	DeletePhotoOrder(ctx context.Context, id string) error
	LinkPhotoOrderSession(ctx context.Context, id, sessionID string) error
	GetPhotoOrder(ctx context.Context, id string) (*model.PhotoOrder, error)
	GetPhotoOrderBySession(ctx context.Context, sessionID string) (*model.PhotoOrder, error)
	UpdatePhotoOrderStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.PhotoOrder, bool, error)

	Ping(ctx context.Context) error
	MigrateUp(ctx context.Context) error
	MigrateDown(ctx context.Context) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

func (r *repository) MigrateUp(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db.Master, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	r.log.Info().Msg("Migrations applied successfully")
	return nil
}

func (r *repository) MigrateDown(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.DownContext(ctx, r.db.Master, migrationsDir); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	r.log.Info().Msg("Migrations rolled back successfully")
	return nil
}

// withTx runs fn inside a master transaction, rolling back on error or panic.
func (r *repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByTransactionRef(ctx context.Context, transactionRef string) (*models.Payment, error)
	FindByTransactionRefForUpdate(ctx context.Context, transactionRef string) (*models.Payment, error)
	FindByOwnerAndKey(ctx context.Context, ownerID uuid.UUID, idempotencyKey string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListFilter) ([]models.Payment, *pagination.Cursor, error)
	CreateAuditLog(ctx context.Context, entry *models.PaymentAuditLog) error
}

// ListFilter configures payment list queries.
type ListFilter struct {
	Status *enums.PaymentStatus
	Type   *enums.PaymentType
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIDForUpdate locks the payment row inside the caller's transaction so
// concurrent refund writes serialize on it.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByTransactionRef(ctx context.Context, transactionRef string) (*models.Payment, error) {
	if transactionRef == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_ref = ?", transactionRef).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByTransactionRefForUpdate locks the row so racing webhook deliveries
// apply their status writes one at a time.
func (r *repository) FindByTransactionRefForUpdate(ctx context.Context, transactionRef string) (*models.Payment, error) {
	if transactionRef == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_ref = ?", transactionRef).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOwnerAndKey(ctx context.Context, ownerID uuid.UUID, idempotencyKey string) (*models.Payment, error) {
	if idempotencyKey == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND idempotency_key = ?", ownerID, idempotencyKey).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListFilter) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("owner_id = ?", ownerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Type != nil {
		query = query.Where("payment_type = ?", *params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > limit {
		next := rows[limit]
		rows = rows[:limit]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repository) CreateAuditLog(ctx context.Context, entry *models.PaymentAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zllovesuki/rtdn/response"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serializationFailure = "40001"

type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Manager handles the database operations relating to Subscriptions and their payments
type Manager struct {
	ManagerOptions
	inTx bool
}

var _ Repository = &Manager{}

func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&PaymentMethod{}, &Subscription{}, &PaymentTransaction{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize subscription.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

func (m *Manager) withTx(tx *gorm.DB) *Manager {
	return &Manager{
		ManagerOptions: ManagerOptions{
			DB:     tx,
			Logger: m.Logger,
		},
		inTx: true,
	}
}

func (m *Manager) txOptions() *sql.TxOptions {
	// sqlite has no row level locking and serializes writers anyway
	if m.DB.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	}
}

func (m *Manager) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if m.inTx {
		return fn(m)
	}
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(m.withTx(tx))
	}, m.txOptions())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return response.ErrTransitionConflict("serialization failure")
	}
	return err
}

func (m *Manager) ListByToken(ctx context.Context, purchaseToken string, statuses ...Status) ([]Subscription, error) {
	methods := m.DB.Model(&PaymentMethod{}).
		Select("id").
		Where("external_recurring_id = ?", purchaseToken)

	baseQuery := m.DB.WithContext(ctx).
		Where("payment_method_id IN (?)", methods).
		Where("provider = ?", ProviderGoogle).
		Order("created_at desc")
	if len(statuses) > 0 {
		baseQuery = baseQuery.Where("status IN ?", statuses)
	}

	results := make([]Subscription, 0, 1)
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list subscriptions by purchase token")
	}
	return results, nil
}

func (m *Manager) Create(ctx context.Context, sub *Subscription) error {
	if len(sub.ID) == 0 {
		sub.ID = shortuuid.New()
	}
	result := m.DB.WithContext(ctx).Create(sub)
	if result.Error != nil {
		m.Logger.Error("Unable to create new subscription in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create subscription")
	}
	return nil
}

func (m *Manager) Transition(ctx context.Context, sub *Subscription, expected Status) error {
	now := time.Now()
	res := m.DB.WithContext(ctx).Model(&Subscription{}).
		Where("id = ?", sub.ID).
		Where("status = ?", expected).
		Where("version = ?", sub.Version).
		Updates(map[string]interface{}{
			"status":             sub.Status,
			"valid_until":        sub.ValidUntil,
			"grace_period_until": sub.GracePeriodUntil,
			"change_reason":      sub.ChangeReason,
			"version":            gorm.Expr("version + ?", 1),
			"updated_at":         now,
		})
	if res.Error != nil {
		return extErrors.Wrap(res.Error, "Cannot update subscription")
	}
	if res.RowsAffected == 0 {
		m.Logger.Warn("Subscription transition did not match current state",
			zap.String("SubscriptionID", sub.ID),
			zap.String("Expected", string(expected)),
			zap.Int64("Version", sub.Version),
		)
		return response.ErrTransitionConflict(sub.ID)
	}
	sub.Version++
	sub.UpdatedAt = now
	return nil
}

func (m *Manager) GetPaymentMethod(ctx context.Context, purchaseToken string) (*PaymentMethod, error) {
	var pm PaymentMethod

	result := m.DB.WithContext(ctx).First(&pm, "external_recurring_id = ?", purchaseToken)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get payment method by purchase token")
	}

	return &pm, nil
}

func (m *Manager) CreatePaymentMethod(ctx context.Context, pm *PaymentMethod) error {
	if len(pm.ID) == 0 {
		pm.ID = shortuuid.New()
	}
	result := m.DB.WithContext(ctx).Create(pm)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return response.ErrPurchaseTokenAlreadyUsed(pm.ExternalRecurringID)
	}
	if result.Error != nil {
		m.Logger.Error("Unable to create new payment method in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create payment method")
	}
	return nil
}

func (m *Manager) GetPayment(ctx context.Context, orderID string) (*PaymentTransaction, error) {
	var p PaymentTransaction

	result := m.DB.WithContext(ctx).First(&p, "external_transaction_id = ?", orderID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get payment transaction by order id")
	}

	return &p, nil
}

func (m *Manager) ListPayments(ctx context.Context, subscriptionID string) ([]PaymentTransaction, error) {
	results := make([]PaymentTransaction, 0, 1)
	result := m.DB.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("paid_until desc").
		Find(&results)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list payment transactions")
	}
	return results, nil
}

func (m *Manager) CreatePayment(ctx context.Context, p *PaymentTransaction) error {
	if len(p.ID) == 0 {
		p.ID = shortuuid.New()
	}
	result := m.DB.WithContext(ctx).Create(p)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return response.ErrPaymentTransactionAlreadyExists(p.ExternalTransactionID)
	}
	if result.Error != nil {
		m.Logger.Error("Unable to create new payment transaction in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create payment transaction")
	}
	return nil
}

func (m *Manager) UpdatePayment(ctx context.Context, p *PaymentTransaction) error {
	result := m.DB.WithContext(ctx).Model(p).
		Select("status", "paid_until", "payload", "updated_at").
		Updates(p)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update payment transaction")
	}
	return nil
}

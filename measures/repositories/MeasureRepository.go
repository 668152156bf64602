package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meter-reading-backend/config"
	"meter-reading-backend/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateMeasure is returned by Create when the unique index on
	// (customer_code, measure_type, measure_month) rejects the row.
	ErrDuplicateMeasure = errors.New("measure already reported for this customer, type and month")
	// ErrAlreadyConfirmed is returned by Confirm when no unconfirmed row matched.
	ErrAlreadyConfirmed = errors.New("measure already confirmed")
)

// postgres SQLSTATE unique_violation
const uniqueViolationCode = "23505"

type MeasureRepository interface {
	FindExisting(ctx context.Context, customerCode string, measureType models.MeasureType, month string) (*models.Measure, error)
	Create(ctx context.Context, measure *models.Measure) error
	FindByUUID(ctx context.Context, measureUUID uuid.UUID) (*models.Measure, error)
	Confirm(ctx context.Context, measureUUID uuid.UUID, value decimal.Decimal, confirmedAt time.Time) error
	ListByCustomer(ctx context.Context, customerCode string, measureType *models.MeasureType) ([]models.Measure, error)
	ImageKeysInUse(ctx context.Context, keys []string) (map[string]bool, error)
}

type measureRepository struct {
	db *gorm.DB
}

func NewMeasureRepository(db *gorm.DB) MeasureRepository {
	return &measureRepository{db: db}
}

// FindExisting returns nil, nil when the customer has no measure of that type in month.
func (r *measureRepository) FindExisting(ctx context.Context, customerCode string, measureType models.MeasureType, month string) (*models.Measure, error) {
	var measure models.Measure
	err := r.db.WithContext(ctx).
		Where("customer_code = ? AND measure_type = ? AND measure_month = ?", customerCode, measureType, month).
		First(&measure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error while finding existing measure: %w", err)
	}
	return &measure, nil
}

func (r *measureRepository) Create(ctx context.Context, measure *models.Measure) error {
	if err := r.db.WithContext(ctx).Create(measure).Error; err != nil {
		if isUniqueViolation(err) {
			config.Logger.Warn("Measure insert rejected by unique index",
				zap.String("customerCode", measure.CustomerCode),
				zap.String("measureType", string(measure.MeasureType)),
				zap.String("measureMonth", measure.MeasureMonth))
			return ErrDuplicateMeasure
		}
		return fmt.Errorf("failed to create measure: %w", err)
	}
	return nil
}

func (r *measureRepository) FindByUUID(ctx context.Context, measureUUID uuid.UUID) (*models.Measure, error) {
	var measure models.Measure
	err := r.db.WithContext(ctx).Where("measure_uuid = ?", measureUUID).First(&measure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error while finding measure %s: %w", measureUUID, err)
	}
	return &measure, nil
}

// Confirm sets the value only while has_confirmed is still false, so two concurrent
// confirmations cannot both succeed.
func (r *measureRepository) Confirm(ctx context.Context, measureUUID uuid.UUID, value decimal.Decimal, confirmedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Measure{}).
		Where("measure_uuid = ? AND has_confirmed = ?", measureUUID, false).
		Updates(map[string]interface{}{
			"measure_value": decimal.NewNullDecimal(value),
			"has_confirmed": true,
			"confirmed_at":  confirmedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to confirm measure %s: %w", measureUUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyConfirmed
	}
	return nil
}

func (r *measureRepository) ListByCustomer(ctx context.Context, customerCode string, measureType *models.MeasureType) ([]models.Measure, error) {
	var measures []models.Measure

	query := r.db.WithContext(ctx).Where("customer_code = ?", customerCode)
	if measureType != nil {
		query = query.Where("measure_type = ?", *measureType)
	}

	if err := query.Order("measure_datetime ASC").Find(&measures).Error; err != nil {
		return nil, fmt.Errorf("failed to list measures for customer %s: %w", customerCode, err)
	}
	return measures, nil
}

// ImageKeysInUse reports which of keys are referenced by a stored measure.
func (r *measureRepository) ImageKeysInUse(ctx context.Context, keys []string) (map[string]bool, error) {
	inUse := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return inUse, nil
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&models.Measure{}).
		Where("image_key IN ?", keys).
		Pluck("image_key", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up image keys: %w", err)
	}

	for _, key := range found {
		inUse[key] = true
	}
	return inUse, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meter-reading-backend/config"
	"meter-reading-backend/db/models"
	"meter-reading-backend/measures/repositories"
	"meter-reading-backend/measures/requests"
	"meter-reading-backend/measures/validators"
	"meter-reading-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// listDatetimeLayout renders measure_datetime as ISO-8601 with milliseconds in UTC.
const listDatetimeLayout = "2006-01-02T15:04:05.000Z"

// listFilterAll is the cache key segment used when no measure_type filter is given.
const listFilterAll = "ALL"

// ReadingExtractor returns the raw reading text the vision model sees in an image.
type ReadingExtractor interface {
	ExtractReading(ctx context.Context, image []byte, mimeType string) (string, error)
}

type ImageStore interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
}

// ListCache stores rendered list responses per customer, generation and type
// filter. Invalidate moves the customer to a new generation.
type ListCache interface {
	Generation(ctx context.Context, customerCode string) (string, bool)
	Get(ctx context.Context, customerCode, generation, filter string) ([]byte, bool)
	Set(ctx context.Context, customerCode, generation, filter string, payload []byte)
	Invalidate(ctx context.Context, customerCode string)
}

// OrphanReaper removes an uploaded image whose measure row could not be stored.
type OrphanReaper interface {
	Reap(ctx context.Context, key string) error
}

type MeasureService struct {
	repo      repositories.MeasureRepository
	extractor ReadingExtractor
	store     ImageStore
	cache     ListCache
	reaper    OrphanReaper
	validator *validators.MeasureValidator
	now       func() time.Time
}

// NewMeasureService wires the workflow. cache and reaper may be nil.
func NewMeasureService(
	repo repositories.MeasureRepository,
	extractor ReadingExtractor,
	store ImageStore,
	cache ListCache,
	reaper OrphanReaper,
) *MeasureService {
	return &MeasureService{
		repo:      repo,
		extractor: extractor,
		store:     store,
		cache:     cache,
		reaper:    reaper,
		validator: validators.NewMeasureValidator(),
		now:       time.Now,
	}
}

type extractionInfo struct {
	MimeType   string `json:"mime_type"`
	ImageBytes int    `json:"image_bytes"`
	DurationMs int64  `json:"duration_ms"`
}

// Upload extracts the reading from the image, stores the image and records an
// unconfirmed measure.
func (s *MeasureService) Upload(ctx context.Context, req *requests.UploadMeasureRequest) (*requests.UploadMeasureResponse, error) {
	input, err := s.validator.ValidateUploadRequest(req)
	if err != nil {
		return nil, invalidDataFromValidation(err)
	}

	started := s.now()
	measureValue, err := s.extractor.ExtractReading(ctx, input.Image, input.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to extract meter reading: %w", err)
	}
	elapsed := s.now().Sub(started)

	month := models.MonthBucket(input.MeasureDatetime)
	existing, err := s.repo.FindExisting(ctx, input.CustomerCode, input.MeasureType, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, doubleReportError(nil)
	}

	measureUUID := uuid.New()
	imageKey := models.MeasureImageKey(input.CustomerCode, measureUUID)

	imageURL, err := s.store.Upload(ctx, input.Image, imageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to upload measure image: %w", err)
	}

	extraction, _ := json.Marshal(extractionInfo{
		MimeType:   input.MimeType,
		ImageBytes: len(input.Image),
		DurationMs: elapsed.Milliseconds(),
	})

	measure := &models.Measure{
		MeasureUUID:     measureUUID,
		CustomerCode:    input.CustomerCode,
		MeasureType:     input.MeasureType,
		MeasureMonth:    month,
		MeasureDatetime: input.MeasureDatetime,
		ExtractedValue:  measureValue,
		HasConfirmed:    false,
		ImageURL:        imageURL,
		ImageKey:        imageKey,
		Extraction:      datatypes.JSON(extraction),
	}

	if err := s.repo.Create(ctx, measure); err != nil {
		s.reapImage(ctx, imageKey)
		if errors.Is(err, repositories.ErrDuplicateMeasure) {
			return nil, doubleReportError(err)
		}
		return nil, err
	}

	s.invalidate(ctx, input.CustomerCode)

	config.Logger.Info("Measure uploaded",
		zap.String("measureUUID", measureUUID.String()),
		zap.String("customerCode", input.CustomerCode),
		zap.String("measureType", string(input.MeasureType)),
		zap.String("measureMonth", month),
		zap.Duration("extraction", elapsed))

	return &requests.UploadMeasureResponse{
		ImageURL:     imageURL,
		MeasureValue: measureValue,
		MeasureUUID:  measureUUID.String(),
	}, nil
}

// Confirm records the human-verified value. A measure can be confirmed once.
func (s *MeasureService) Confirm(ctx context.Context, req *requests.ConfirmMeasureRequest) error {
	input, err := s.validator.ValidateConfirmRequest(req)
	if err != nil {
		return invalidDataFromValidation(err)
	}

	// Ids that are not UUIDs cannot name a stored measure.
	measureUUID, err := uuid.Parse(input.MeasureUUID)
	if err != nil {
		return newMeasureError(ErrCodeMeasureNotFound, "Measure not found", err)
	}

	measure, err := s.repo.FindByUUID(ctx, measureUUID)
	if err != nil {
		return err
	}
	if measure == nil {
		return newMeasureError(ErrCodeMeasureNotFound, "Measure not found", nil)
	}
	if measure.HasConfirmed {
		return newMeasureError(ErrCodeConfirmationDuplicate, "Measure already confirmed", nil)
	}

	if err := s.repo.Confirm(ctx, measureUUID, input.ConfirmedValue, s.now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrAlreadyConfirmed) {
			return newMeasureError(ErrCodeConfirmationDuplicate, "Measure already confirmed", err)
		}
		return err
	}

	s.invalidate(ctx, measure.CustomerCode)

	config.Logger.Info("Measure confirmed",
		zap.String("measureUUID", measureUUID.String()),
		zap.String("customerCode", measure.CustomerCode),
		zap.String("confirmedValue", input.ConfirmedValue.String()))
	return nil
}

// List returns the customer's measures, optionally filtered by type.
func (s *MeasureService) List(ctx context.Context, customerCode, measureType string) (*requests.ListMeasuresResponse, error) {
	filter, err := s.validator.ValidateMeasureTypeFilter(measureType)
	if err != nil {
		return nil, invalidTypeError(err)
	}

	cacheFilter := listFilterAll
	if filter != nil {
		cacheFilter = string(*filter)
	}

	// The generation is read before the rows so that a write committed in
	// between leaves this result under a retired generation.
	generation, cacheable := s.cacheGeneration(ctx, customerCode)
	if cacheable {
		if cached, ok := s.cachedList(ctx, customerCode, generation, cacheFilter); ok {
			return cached, nil
		}
	}

	measures, err := s.findMeasures(ctx, customerCode, filter)
	if err != nil {
		return nil, err
	}

	response := &requests.ListMeasuresResponse{
		CustomerCode: customerCode,
		Measures:     make([]requests.MeasureListItem, 0, len(measures)),
	}
	for _, m := range measures {
		response.Measures = append(response.Measures, requests.MeasureListItem{
			MeasureUUID:     m.MeasureUUID.String(),
			MeasureDatetime: m.MeasureDatetime.UTC().Format(listDatetimeLayout),
			MeasureType:     string(m.MeasureType),
			HasConfirmed:    m.HasConfirmed,
			ImageURL:        m.ImageURL,
		})
	}

	if cacheable {
		if payload, err := json.Marshal(response); err == nil {
			s.cache.Set(ctx, customerCode, generation, cacheFilter, payload)
		}
	}
	return response, nil
}

// Export renders the customer's measures as an xlsx workbook.
func (s *MeasureService) Export(ctx context.Context, customerCode, measureType string) (*bytes.Buffer, error) {
	filter, err := s.validator.ValidateMeasureTypeFilter(measureType)
	if err != nil {
		return nil, invalidTypeError(err)
	}

	measures, err := s.findMeasures(ctx, customerCode, filter)
	if err != nil {
		return nil, err
	}

	workbook, err := utils.BuildMeasuresWorkbook(measures)
	if err != nil {
		return nil, fmt.Errorf("failed to build measures workbook: %w", err)
	}
	return workbook, nil
}

func (s *MeasureService) findMeasures(ctx context.Context, customerCode string, filter *models.MeasureType) ([]models.Measure, error) {
	measures, err := s.repo.ListByCustomer(ctx, customerCode, filter)
	if err != nil {
		return nil, err
	}
	if len(measures) == 0 {
		return nil, newMeasureError(ErrCodeMeasuresNotFound, "No readings found", nil)
	}
	return measures, nil
}

func (s *MeasureService) cacheGeneration(ctx context.Context, customerCode string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	return s.cache.Generation(ctx, customerCode)
}

func (s *MeasureService) cachedList(ctx context.Context, customerCode, generation, filter string) (*requests.ListMeasuresResponse, bool) {
	payload, ok := s.cache.Get(ctx, customerCode, generation, filter)
	if !ok {
		return nil, false
	}
	var response requests.ListMeasuresResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		config.Logger.Warn("Discarding unreadable cached measure list",
			zap.String("customerCode", customerCode), zap.Error(err))
		return nil, false
	}
	return &response, true
}

func (s *MeasureService) invalidate(ctx context.Context, customerCode string) {
	if s.cache != nil {
		s.cache.Invalidate(context.WithoutCancel(ctx), customerCode)
	}
}

// reapImage runs after the request may already be cancelled, so it detaches from ctx.
func (s *MeasureService) reapImage(ctx context.Context, key string) {
	if s.reaper == nil {
		config.Logger.Warn("Measure insert failed and no reaper is configured, image left in store", zap.String("imageKey", key))
		return
	}
	if err := s.reaper.Reap(context.WithoutCancel(ctx), key); err != nil {
		config.Logger.Error("Failed to reap orphaned measure image", zap.String("imageKey", key), zap.Error(err))
	}
}

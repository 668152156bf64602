package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type MeasureType string

const (
	WaterMeasure MeasureType = "WATER"
	GasMeasure   MeasureType = "GAS"
)

// MeasureMonthLayout is the layout of Measure.MeasureMonth.
const MeasureMonthLayout = "2006-01"

// ParseMeasureType upper-cases s and reports whether it names a known measure type.
func ParseMeasureType(s string) (MeasureType, bool) {
	switch t := MeasureType(strings.ToUpper(strings.TrimSpace(s))); t {
	case WaterMeasure, GasMeasure:
		return t, true
	default:
		return "", false
	}
}

// Measure is one meter reading for a customer. At most one row exists per
// customer, measure type and calendar month (UTC).
type Measure struct {
	MeasureUUID     uuid.UUID   `gorm:"type:uuid;primaryKey" json:"measure_uuid"`
	CustomerCode    string      `gorm:"type:varchar(100);not null;uniqueIndex:idx_measures_customer_type_month,priority:1" json:"customer_code"`
	MeasureType     MeasureType `gorm:"type:varchar(10);not null;uniqueIndex:idx_measures_customer_type_month,priority:2" json:"measure_type"`
	MeasureMonth    string      `gorm:"type:char(7);not null;uniqueIndex:idx_measures_customer_type_month,priority:3" json:"measure_month"`
	MeasureDatetime time.Time   `gorm:"not null;index" json:"measure_datetime"`

	// ExtractedValue is the raw text returned by the vision model, stored as-is.
	ExtractedValue string              `gorm:"type:text" json:"extracted_value"`
	MeasureValue   decimal.NullDecimal `gorm:"type:numeric" json:"measure_value"`
	HasConfirmed   bool                `gorm:"not null;default:false" json:"has_confirmed"`
	ConfirmedAt    *time.Time          `json:"confirmed_at,omitempty"`

	ImageURL   string         `gorm:"type:text;not null" json:"image_url"`
	ImageKey   string         `gorm:"type:varchar(255);not null" json:"image_key"`
	Extraction datatypes.JSON `json:"extraction,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Measure) TableName() string {
	return "measures"
}

// MonthBucket returns the calendar month of t in UTC, e.g. "2024-08".
func MonthBucket(t time.Time) string {
	return t.UTC().Format(MeasureMonthLayout)
}

// MeasureImageKey is the object-store key of a measure's photo.
func MeasureImageKey(customerCode string, measureUUID uuid.UUID) string {
	return fmt.Sprintf("%s/%s%s", customerCode, measureUUID.String(), measureImageExt)
}

const measureImageExt = ".jpg"

// IsMeasureImageKey reports whether key has the shape MeasureImageKey produces.
func IsMeasureImageKey(key string) bool {
	slash := strings.LastIndex(key, "/")
	if slash <= 0 {
		return false
	}
	name, ok := strings.CutSuffix(key[slash+1:], measureImageExt)
	if !ok {
		return false
	}
	parsed, err := uuid.Parse(name)
	return err == nil && parsed.String() == name
}

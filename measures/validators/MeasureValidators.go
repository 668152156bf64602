package validators

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"meter-reading-backend/db/models"
	"meter-reading-backend/measures/requests"

	"github.com/shopspring/decimal"
)

// dataURIPrefix matches the "data:image/png;base64," header browsers put in front of the payload.
var dataURIPrefix = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)

// defaultImageMimeType is used when the payload cannot be sniffed as an image.
const defaultImageMimeType = "image/jpeg"

// UploadInput is a validated upload request.
type UploadInput struct {
	Image           []byte
	MimeType        string
	CustomerCode    string
	MeasureDatetime time.Time
	MeasureType     models.MeasureType
}

// ConfirmInput is a validated confirmation request. MeasureUUID is kept as sent:
// an id that does not parse simply matches no measure.
type ConfirmInput struct {
	MeasureUUID    string
	ConfirmedValue decimal.Decimal
}

// maxConfirmedIntegerDigits bounds confirmed readings to what a meter can display.
const maxConfirmedIntegerDigits = 18

type MeasureValidator struct{}

func NewMeasureValidator() *MeasureValidator {
	return &MeasureValidator{}
}

// ValidateUploadRequest checks that every field is present and well formed.
func (v *MeasureValidator) ValidateUploadRequest(req *requests.UploadMeasureRequest) (*UploadInput, error) {
	if req == nil {
		return nil, errors.New("request body is required")
	}

	image := strings.TrimSpace(req.Image)
	customerCode := strings.TrimSpace(req.CustomerCode)
	measureDatetime := strings.TrimSpace(req.MeasureDatetime)
	measureType := strings.TrimSpace(req.MeasureType)

	if image == "" || customerCode == "" || measureDatetime == "" || measureType == "" {
		return nil, errors.New("image, customer_code, measure_datetime and measure_type are required")
	}

	parsedType, ok := models.ParseMeasureType(measureType)
	if !ok {
		return nil, fmt.Errorf("measure_type must be WATER or GAS, got %q", measureType)
	}

	parsedTime, err := ParseMeasureDatetime(measureDatetime)
	if err != nil {
		return nil, err
	}

	imageBytes, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}

	return &UploadInput{
		Image:           imageBytes,
		MimeType:        DetectImageMimeType(imageBytes),
		CustomerCode:    customerCode,
		MeasureDatetime: parsedTime,
		MeasureType:     parsedType,
	}, nil
}

// ValidateConfirmRequest requires a measure_uuid and a JSON number. Quoted numbers are rejected.
func (v *MeasureValidator) ValidateConfirmRequest(req *requests.ConfirmMeasureRequest) (*ConfirmInput, error) {
	if req == nil {
		return nil, errors.New("request body is required")
	}

	measureUUID := strings.TrimSpace(req.MeasureUUID)
	if measureUUID == "" {
		return nil, errors.New("measure_uuid is required")
	}

	value, err := ParseConfirmedValue(req.ConfirmedValue)
	if err != nil {
		return nil, err
	}

	return &ConfirmInput{MeasureUUID: measureUUID, ConfirmedValue: value}, nil
}

// ValidateMeasureTypeFilter returns nil when no filter was given.
func (v *MeasureValidator) ValidateMeasureTypeFilter(measureType string) (*models.MeasureType, error) {
	if strings.TrimSpace(measureType) == "" {
		return nil, nil
	}
	parsed, ok := models.ParseMeasureType(measureType)
	if !ok {
		return nil, fmt.Errorf("measure_type must be WATER or GAS, got %q", measureType)
	}
	return &parsed, nil
}

// ParseMeasureDatetime accepts RFC 3339 timestamps with or without fractional seconds,
// and a bare "2006-01-02T15:04:05" which is read as UTC.
func ParseMeasureDatetime(value string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("measure_datetime must be an ISO-8601 timestamp, got %q", value)
}

// DecodeImage strips an optional data URI header and decodes padded or unpadded base64.
func DecodeImage(value string) ([]byte, error) {
	payload := dataURIPrefix.ReplaceAllString(strings.TrimSpace(value), "")
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)

	if payload == "" {
		return nil, errors.New("image is empty")
	}

	encodings := []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding}
	for _, enc := range encodings {
		if decoded, err := enc.DecodeString(payload); err == nil && len(decoded) > 0 {
			return decoded, nil
		}
	}
	return nil, errors.New("image must be a base64-encoded payload")
}

// DetectImageMimeType sniffs the payload and falls back to image/jpeg.
func DetectImageMimeType(data []byte) string {
	mimeType := http.DetectContentType(data)
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	return defaultImageMimeType
}

// ParseConfirmedValue requires raw to be a JSON number literal.
func ParseConfirmedValue(raw []byte) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Decimal{}, errors.New("confirmed_value is required")
	}

	first := trimmed[0]
	if first != '-' && (first < '0' || first > '9') {
		return decimal.Decimal{}, errors.New("confirmed_value must be a number")
	}

	value, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("confirmed_value must be a number: %v", err)
	}
	if value.NumDigits()+int(value.Exponent()) > maxConfirmedIntegerDigits {
		return decimal.Decimal{}, fmt.Errorf("confirmed_value must have at most %d integer digits", maxConfirmedIntegerDigits)
	}
	return value, nil
}

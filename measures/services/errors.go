package services

import "fmt"

// ErrorCode is the machine-readable kind returned to clients as error_code.
type ErrorCode string

const (
	ErrCodeInvalidData           ErrorCode = "INVALID_DATA"
	ErrCodeInvalidType           ErrorCode = "INVALID_TYPE"
	ErrCodeDoubleReport          ErrorCode = "DOUBLE_REPORT"
	ErrCodeConfirmationDuplicate ErrorCode = "CONFIRMATION_DUPLICATE"
	ErrCodeMeasureNotFound       ErrorCode = "MEASURE_NOT_FOUND"
	ErrCodeMeasuresNotFound      ErrorCode = "MEASURES_NOT_FOUND"
	ErrCodeInternal              ErrorCode = "INTERNAL_SERVER_ERROR"
)

// MeasureError is an expected business-rule outcome. Any other error coming out of
// MeasureService is an internal failure.
type MeasureError struct {
	Code        ErrorCode
	Description string
	Err         error
}

func (e *MeasureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *MeasureError) Unwrap() error {
	return e.Err
}

func newMeasureError(code ErrorCode, description string, err error) *MeasureError {
	return &MeasureError{Code: code, Description: description, Err: err}
}

// InvalidDataError is used by the HTTP layer when the body cannot be parsed at all.
func InvalidDataError(err error) *MeasureError {
	return newMeasureError(ErrCodeInvalidData, "The data provided in the request body is invalid", err)
}

func invalidDataFromValidation(err error) *MeasureError {
	return newMeasureError(ErrCodeInvalidData, err.Error(), err)
}

func doubleReportError(err error) *MeasureError {
	return newMeasureError(ErrCodeDoubleReport, "Reading for this month has already been taken", err)
}

func invalidTypeError(err error) *MeasureError {
	return newMeasureError(ErrCodeInvalidType, "Measure type not allowed", err)
}

package requests

import "encoding/json"

type UploadMeasureRequest struct {
	Image           string `json:"image"`
	CustomerCode    string `json:"customer_code"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
}

// ConfirmMeasureRequest keeps confirmed_value raw so that a quoted number can be
// told apart from a JSON number.
type ConfirmMeasureRequest struct {
	MeasureUUID    string          `json:"measure_uuid"`
	ConfirmedValue json.RawMessage `json:"confirmed_value"`
}

type UploadMeasureResponse struct {
	ImageURL     string `json:"image_url"`
	MeasureValue string `json:"measure_value"`
	MeasureUUID  string `json:"measure_uuid"`
}

type ConfirmMeasureResponse struct {
	Success bool `json:"success"`
}

type MeasureListItem struct {
	MeasureUUID     string `json:"measure_uuid"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
	HasConfirmed    bool   `json:"has_confirmed"`
	ImageURL        string `json:"image_url"`
}

type ListMeasuresResponse struct {
	CustomerCode string            `json:"customer_code"`
	Measures     []MeasureListItem `json:"measures"`
}

type ErrorResponse struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

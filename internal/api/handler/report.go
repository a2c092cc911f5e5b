package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skyfuse/skyfuse/internal/api/models"
	"github.com/skyfuse/skyfuse/internal/api/response"
	"github.com/skyfuse/skyfuse/internal/weather/homebrew"
)

// ReportHandler handles sensor station report ingest and retrieval.
type ReportHandler struct {
	repo homebrew.Repository
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(repo homebrew.Repository) *ReportHandler {
	return &ReportHandler{repo: repo}
}

// createReportRequest is the ingest payload. All measurements are optional.
type createReportRequest struct {
	DeviceType    string   `json:"device_type"`
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Precipitation *float64 `json:"precipitation"`
	PM10          *float64 `json:"pm10"`
	PM25          *float64 `json:"pm25"`
	CO2           *float64 `json:"co2"`
	TVOC          *float64 `json:"tvoc"`
}

func (req *createReportRequest) validate() []models.FieldError {
	var errs []models.FieldError
	if req.DeviceType == "" {
		errs = append(errs, models.FieldError{
			Field: "device_type", Message: "device_type is required", Code: "required",
		})
	}
	if req.Temperature == nil && req.Humidity == nil && req.Precipitation == nil &&
		req.PM10 == nil && req.PM25 == nil && req.CO2 == nil && req.TVOC == nil {
		errs = append(errs, models.FieldError{
			Field: "temperature", Message: "at least one measurement is required", Code: "required",
		})
	}
	return errs
}

// Create handles POST /v1/reports - sensor report ingest.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid report", errs)
		return
	}

	report := &homebrew.Report{
		ID:            uuid.NewString(),
		DeviceType:    req.DeviceType,
		Temperature:   req.Temperature,
		Humidity:      req.Humidity,
		Precipitation: req.Precipitation,
		PM10:          req.PM10,
		PM25:          req.PM25,
		CO2:           req.CO2,
		TVOC:          req.TVOC,
		Timestamp:     time.Now().Unix(),
	}

	if err := h.repo.Insert(r.Context(), report); err != nil {
		response.InternalError(w, r, "failed to store report")
		return
	}

	response.Created(w, r, "/v1/reports/"+report.ID, report)
}

// Latest handles GET /v1/reports/latest?device_type=...&limit=N
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	deviceType := r.URL.Query().Get("device_type")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw, 100)
		if err != nil {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "limit", Message: "limit must be an integer between 1 and 100", Code: "invalid"},
			})
			return
		}
		limit = parsed
	}

	reports, err := h.repo.Latest(r.Context(), deviceType, limit)
	if err != nil {
		response.InternalError(w, r, "failed to load reports")
		return
	}
	if reports == nil {
		reports = []homebrew.Report{}
	}
	response.JSON(w, r, http.StatusOK, reports)
}

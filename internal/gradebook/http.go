package gradebook

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"course-mark-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/courses/{courseID}/marks", h.CommitMarkBatch)
	router.Get("/courses/{courseID}/marks", h.GetCourseMarks)
	router.Get("/courses/{courseID}/students/{studentID}/marks", h.GetStudentMarks)
	router.Post("/records", h.AddRecord)
	router.Get("/students/{matricNumber}/records", h.GetStudentRecords)
}

type commitBatchRequest struct {
	AssessmentName string      `json:"assessment_name"`
	Entries        []MarkEntry `json:"entries"`
}

type errorResponse struct {
	Error     string       `json:"error"`
	Kind      Kind         `json:"kind"`
	StudentID int          `json:"student_id,omitempty"`
	Value     *float64     `json:"value,omitempty"`
	Bound     *float64     `json:"bound,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
}

func (h *Handler) CommitMarkBatch(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.intParam(w, r, "courseID")
	if !ok {
		return
	}

	var req commitBatchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "committing mark batch",
		"course_id", courseID,
		"assessment", req.AssessmentName,
		"entries", len(req.Entries),
	)
	if err := h.service.CommitMarkBatch(r.Context(), courseID, req.AssessmentName, req.Entries); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(req.Entries),
	})
}

func (h *Handler) AddRecord(w http.ResponseWriter, r *http.Request) {
	var payload RecordPayload
	if err := httputil.DecodeJSON(w, r, &payload); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	h.logger.InfoContext(r.Context(), "adding record", "matric_number", payload.MatricNumber)
	msg, err := h.service.AddRecordWithCascade(r.Context(), payload)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, map[string]string{"message": msg})
}

func (h *Handler) GetCourseMarks(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.intParam(w, r, "courseID")
	if !ok {
		return
	}

	sheet, err := h.service.AggregateMarks(r.Context(), courseID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, sheet)
}

func (h *Handler) GetStudentMarks(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.intParam(w, r, "courseID")
	if !ok {
		return
	}
	studentID, ok := h.intParam(w, r, "studentID")
	if !ok {
		return
	}

	sheet, err := h.service.AggregateStudentMarks(r.Context(), courseID, studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, sheet)
}

// GetStudentRecords serves the old per-student record listing.
func (h *Handler) GetStudentRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Deprecation", "true")

	records, err := h.service.GetStudentRecords(r.Context(), chi.URLParam(r, "matricNumber"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		h.badRequest(w, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	httputil.RespondWithJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: KindValidation})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithError(w, r, h.logger, err)
}

// RespondWithError writes err as a JSON error body with the status code of its kind.
func RespondWithError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var e *Error
	if !errors.As(err, &e) {
		logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Kind: KindInternal})
		return
	}

	resp := errorResponse{
		Error:     e.Message,
		Kind:      e.Kind,
		StudentID: e.StudentID,
		Value:     e.Value,
		Bound:     e.Bound,
		Fields:    e.Fields,
	}

	switch e.Kind {
	case KindValidation:
		httputil.RespondWithJSON(w, http.StatusBadRequest, resp)
	case KindNotFound:
		httputil.RespondWithJSON(w, http.StatusNotFound, resp)
	case KindConflict:
		httputil.RespondWithJSON(w, http.StatusConflict, resp)
	default:
		logger.ErrorContext(r.Context(), "internal error", "error", e.Error(), "cause", e.Err)
		code := http.StatusInternalServerError
		if e.Retry {
			w.Header().Set("Retry-After", "30")
			code = http.StatusServiceUnavailable
		}
		httputil.RespondWithJSON(w, code, resp)
	}
}

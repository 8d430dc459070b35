package reporting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"course-mark-service/internal/gradebook"
	"course-mark-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

// SheetSource is the part of the gradebook the reports read from.
type SheetSource interface {
	AggregateMarks(ctx context.Context, courseID int) (*gradebook.MarkSheet, error)
}

type Handler struct {
	sheets SheetSource
	logger *slog.Logger
}

func NewHandler(sheets SheetSource, logger *slog.Logger) *Handler {
	return &Handler{
		sheets: sheets,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/courses/{courseID}/report", h.GetCourseReport)
	router.Get("/courses/{courseID}/students/{studentID}/report", h.GetStudentStanding)
}

func (h *Handler) GetCourseReport(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil || courseID <= 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	report, err := h.report(r, courseID)
	if err != nil {
		gradebook.RespondWithError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) GetStudentStanding(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil || courseID <= 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	studentID, err := strconv.Atoi(chi.URLParam(r, "studentID"))
	if err != nil || studentID <= 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	report, err := h.report(r, courseID)
	if err != nil {
		gradebook.RespondWithError(w, r, h.logger, err)
		return
	}

	standing, err := StudentStanding(report, studentID)
	if err != nil {
		if errors.Is(err, ErrStudentNotInCourse) {
			httputil.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		gradebook.RespondWithError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, standing)
}

func (h *Handler) report(r *http.Request, courseID int) (*CourseReport, error) {
	sheet, err := h.sheets.AggregateMarks(r.Context(), courseID)
	if err != nil {
		return nil, err
	}
	return BuildCourseReport(courseID, sheet), nil
}

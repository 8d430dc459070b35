package gradebook

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/metrics"
	"course-mark-service/internal/student"
)

const recordAddedMessage = "record added successfully"

type Service interface {
	// CommitMarkBatch writes every entry's mark on one assessment or none of them.
	CommitMarkBatch(ctx context.Context, courseID int, assessmentName string, entries []MarkEntry) error
	// AddRecordWithCascade records a first mark for a known student and makes sure
	// the student is enrolled in every course with a mark row for every assessment.
	AddRecordWithCascade(ctx context.Context, payload RecordPayload) (string, error)
	AggregateMarks(ctx context.Context, courseID int) (*MarkSheet, error)
	AggregateStudentMarks(ctx context.Context, courseID, studentID int) (*MarkSheet, error)
	// Deprecated: use AggregateStudentMarks per course.
	GetStudentRecords(ctx context.Context, matricNumber string) ([]StudentRecord, error)
}

type service struct {
	store       Store
	students    student.Repository
	assessments assessment.Repository
	publisher   Publisher
	validator   *structValidator
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService wires the engine. publisher may be nil when no events are wanted.
func NewService(store Store, students student.Repository, assessments assessment.Repository, publisher Publisher, logger *slog.Logger, m *metrics.Metrics) Service {
	return &service{
		store:       store,
		students:    students,
		assessments: assessments,
		publisher:   publisher,
		validator:   newStructValidator(),
		logger:      logger,
		metrics:     m,
	}
}

func (s *service) CommitMarkBatch(ctx context.Context, courseID int, assessmentName string, entries []MarkEntry) error {
	target, err := s.commitMarkBatch(ctx, courseID, assessmentName, entries)
	if err != nil {
		s.metrics.Gradebook.RecordBatchRejected(ctx, string(KindOf(err)))
		s.logFailure(ctx, "mark batch rejected", err,
			"course_id", courseID,
			"assessment", assessmentName,
			"entries", len(entries),
		)
		return err
	}

	s.metrics.Gradebook.RecordBatchCommitted(ctx, len(entries))
	s.logger.InfoContext(ctx, "mark batch committed",
		"course_id", courseID,
		"assessment_id", target.ID,
		"entries", len(entries),
	)

	event := MarkEvent{
		Type:           EventBatchCommitted,
		CourseID:       courseID,
		AssessmentID:   target.ID,
		AssessmentName: target.Name,
		Marks:          make([]EventMark, len(entries)),
	}
	for i, e := range entries {
		event.Marks[i] = EventMark{StudentID: e.StudentID, Mark: toDecimal(*e.Mark).InexactFloat64()}
	}
	s.publish(ctx, event)

	return nil
}

func (s *service) commitMarkBatch(ctx context.Context, courseID int, assessmentName string, entries []MarkEntry) (*assessment.Assessment, error) {
	input := batchInput{CourseID: courseID, AssessmentName: assessmentName, Entries: entries}
	if err := s.validator.check(input); err != nil {
		return nil, entryError(err, entries)
	}

	target, err := s.resolveAssessment(ctx, s.assessments, courseID, assessmentName)
	if err != nil {
		return nil, err
	}

	// Reject the whole batch up front; nothing is written if any entry is out of bounds.
	for _, e := range entries {
		if err := ValidateMark(e.Mark, target.Weight); err != nil {
			return nil, forStudent(err, e.StudentID)
		}
	}

	// Rows are written in student order so concurrent batches lock them in the same order.
	ordered := append([]MarkEntry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StudentID < ordered[j].StudentID })

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cat, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}

		for _, e := range ordered {
			if _, err := tx.Students.GetByID(ctx, e.StudentID); err != nil {
				if errors.Is(err, student.ErrStudentNotFound) {
					nf := notFoundError(err, "student %d not found", e.StudentID)
					nf.StudentID = e.StudentID
					return nf
				}
				return internalError("look up student", err)
			}

			// Keeps the enrollment invariant for students marked for the first time.
			if _, err := s.ensureFullScaffold(ctx, tx, cat, e.StudentID); err != nil {
				return err
			}

			if err := s.setMark(ctx, tx, e.StudentID, target.ID, *e.Mark); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError("commit mark batch", err)
	}

	return target, nil
}

func (s *service) AddRecordWithCascade(ctx context.Context, payload RecordPayload) (string, error) {
	created, err := s.addRecordWithCascade(ctx, payload)
	if err != nil {
		s.logFailure(ctx, "record not added", err,
			"matric_number", payload.MatricNumber,
			"course_id", payload.CourseID,
			"assessment", payload.AssessmentName,
		)
		return "", err
	}

	s.metrics.Gradebook.RecordRecordAdded(ctx)
	s.metrics.Gradebook.RecordScaffold(ctx, len(created.enrollments), len(created.marks))
	s.logger.InfoContext(ctx, "record added",
		"student_id", created.studentID,
		"course_id", payload.CourseID,
		"assessment_id", created.assessment.ID,
		"enrollments_created", len(created.enrollments),
		"marks_created", len(created.marks),
	)

	s.publish(ctx, MarkEvent{
		Type:           EventRecordAdded,
		CourseID:       payload.CourseID,
		AssessmentID:   created.assessment.ID,
		AssessmentName: created.assessment.Name,
		Marks: []EventMark{{
			StudentID: created.studentID,
			Mark:      toDecimal(*payload.Mark).InexactFloat64(),
		}},
	})

	return recordAddedMessage, nil
}

type addedRecord struct {
	studentID  int
	assessment *assessment.Assessment
	scaffold
}

func (s *service) addRecordWithCascade(ctx context.Context, payload RecordPayload) (*addedRecord, error) {
	if err := s.validator.check(payload); err != nil {
		return nil, err
	}

	matric := strings.TrimSpace(payload.MatricNumber)
	name := strings.TrimSpace(payload.AssessmentName)

	st, err := s.students.GetByMatricNumber(ctx, matric)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, notFoundError(err, "no student with matric number %q", matric)
		}
		return nil, internalError("look up student", err)
	}

	exists, err := s.store.Exists(ctx, st.ID, payload.CourseID, name)
	if err != nil {
		return nil, internalError("check existing mark", err)
	}
	if exists {
		return nil, duplicateRecord(matric, name)
	}

	target, err := s.resolveAssessment(ctx, s.assessments, payload.CourseID, name)
	if err != nil {
		return nil, err
	}

	if err := ValidateMark(payload.Mark, target.Weight); err != nil {
		return nil, err
	}

	rec := &addedRecord{studentID: st.ID, assessment: target}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cat, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}
		if !cat.hasAssessment(target.ID) {
			return notFoundError(nil, "assessment %q not found in course %d", name, payload.CourseID)
		}

		sc, err := s.ensureFullScaffold(ctx, tx, cat, st.ID)
		if err != nil {
			return err
		}
		rec.scaffold = sc

		// The existence check above ran outside this transaction. Losing the
		// claim means someone recorded the mark since.
		claimed, err := s.claimMark(ctx, tx, st.ID, target.ID, *payload.Mark)
		if err != nil {
			return err
		}
		if !claimed {
			return duplicateRecord(matric, name)
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError("add record", err)
	}

	return rec, nil
}

func duplicateRecord(matric, assessmentName string) *Error {
	return conflictError("a mark for student %q on %q already exists; use the update path to change it", matric, assessmentName)
}

func (s *service) GetStudentRecords(ctx context.Context, matricNumber string) ([]StudentRecord, error) {
	matric := strings.TrimSpace(matricNumber)
	if matric == "" {
		return nil, validationError("matric number is required")
	}

	st, err := s.students.GetByMatricNumber(ctx, matric)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, notFoundError(err, "no student with matric number %q", matric)
		}
		return nil, unavailable(err)
	}

	records, err := s.store.ListByStudent(ctx, st.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch student records", "student_id", st.ID, "error", err)
		return nil, unavailable(err)
	}
	return records, nil
}

// unavailable is the deliberately vague error of the deprecated record fetch.
func unavailable(cause error) *Error {
	e := internalError("fetch records", cause)
	e.Message = "records are temporarily unavailable, please try again later"
	e.Retry = true
	return e
}

func (s *service) resolveAssessment(ctx context.Context, repo assessment.Repository, courseID int, name string) (*assessment.Assessment, error) {
	a, err := repo.GetByCourseAndName(ctx, courseID, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, assessment.ErrAssessmentNotFound) {
			return nil, notFoundError(err, "assessment %q not found in course %d", name, courseID)
		}
		return nil, internalError("resolve assessment", err)
	}
	return a, nil
}

func (s *service) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "kind", KindOf(err), "error", err)
	if KindOf(err) == KindInternal {
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			args = append(args, "cause", e.Err)
		}
		s.logger.ErrorContext(ctx, msg, args...)
		return
	}
	s.logger.InfoContext(ctx, msg, args...)
}

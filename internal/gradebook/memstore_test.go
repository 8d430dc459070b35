package gradebook

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/course"
	"course-mark-service/internal/student"

	"github.com/shopspring/decimal"
)

var errStorage = errors.New("storage unavailable")

type pair struct{ a, b int }

type markRow struct {
	mark     decimal.Decimal
	recorded bool
}

type memState struct {
	enrollments map[pair]bool
	marks       map[pair]markRow
}

func (s memState) clone() memState {
	c := memState{
		enrollments: make(map[pair]bool, len(s.enrollments)),
		marks:       make(map[pair]markRow, len(s.marks)),
	}
	for k, v := range s.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range s.marks {
		c.marks[k] = v
	}
	return c
}

// memStore is a transactional in-memory Store. Transactions are serialized and
// roll back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	students    []student.Student
	courses     []course.Course
	assessments []assessment.Assessment
	state       memState

	// beforeTx runs when a transaction starts; tests use it to play a writer
	// that committed just before.
	beforeTx func(m *memStore)
	// failUpsertFor makes UpsertMark fail for that student id.
	failUpsertFor int
	failReads     bool
	failCommit    bool
	txCount       int
	// upserts lists the student ids UpsertMark wrote, in call order.
	upserts []int
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			enrollments: make(map[pair]bool),
			marks:       make(map[pair]markRow),
		},
	}
}

func (m *memStore) addCourse(id int, name string) {
	m.courses = append(m.courses, course.Course{ID: id, Name: name})
}

func (m *memStore) addAssessment(id, courseID int, name string, weight int64) {
	m.assessments = append(m.assessments, assessment.Assessment{
		ID:       id,
		CourseID: courseID,
		Name:     name,
		Weight:   decimal.NewFromInt(weight),
	})
}

func (m *memStore) addStudent(id int, matric, name string) {
	m.students = append(m.students, student.Student{ID: id, MatricNumber: matric, Name: name})
}

// seedMark writes a mark outside any transaction, the way another process would.
func (m *memStore) seedMark(studentID, assessmentID int, mark float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.marks[pair{studentID, assessmentID}] = markRow{mark: decimal.NewFromFloat(mark), recorded: true}
}

func (m *memStore) markOf(studentID, assessmentID int) (markRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.state.marks[pair{studentID, assessmentID}]
	return row, ok
}

func (m *memStore) enrollmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.enrollments)
}

func (m *memStore) markCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.marks)
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.txCount++
	if m.beforeTx != nil {
		m.beforeTx(m)
	}
	saved := m.snapshot()

	defer func() {
		if p := recover(); p != nil {
			m.restore(saved)
			panic(p)
		}
		if err != nil {
			m.restore(saved)
		}
	}()

	tx := Tx{
		Students:    memStudents{m},
		Courses:     memCourses{m},
		Assessments: memAssessments{m},
		Marks:       m,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.failCommit {
		return errStorage
	}
	return nil
}

func (m *memStore) restore(s memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *memStore) EnsureEnrollments(ctx context.Context, studentID int, courseIDs []int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := make([]int, 0)
	for _, id := range courseIDs {
		k := pair{studentID, id}
		if m.state.enrollments[k] {
			continue
		}
		m.state.enrollments[k] = true
		created = append(created, id)
	}
	return created, nil
}

func (m *memStore) EnsureMarks(ctx context.Context, studentID int, assessmentIDs []int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := make([]int, 0)
	for _, id := range assessmentIDs {
		k := pair{studentID, id}
		if _, ok := m.state.marks[k]; ok {
			continue
		}
		m.state.marks[k] = markRow{mark: decimal.Zero}
		created = append(created, id)
	}
	return created, nil
}

func (m *memStore) UpsertMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpsertFor == studentID {
		return errStorage
	}
	m.state.marks[pair{studentID, assessmentID}] = markRow{mark: mark, recorded: true}
	m.upserts = append(m.upserts, studentID)
	return nil
}

func (m *memStore) RecordMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pair{studentID, assessmentID}
	row, ok := m.state.marks[k]
	if !ok || row.recorded {
		return false, nil
	}
	m.state.marks[k] = markRow{mark: mark, recorded: true}
	return true, nil
}

func (m *memStore) Exists(ctx context.Context, studentID, courseID int, assessmentName string) (bool, error) {
	if m.failReads {
		return false, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assessments {
		if a.CourseID != courseID || a.Name != assessmentName {
			continue
		}
		if row, ok := m.state.marks[pair{studentID, a.ID}]; ok && row.recorded {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListByCourse(ctx context.Context, courseID int) ([]Mark, error) {
	if m.failReads {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inCourse := make(map[int]bool)
	for _, a := range m.assessments {
		if a.CourseID == courseID {
			inCourse[a.ID] = true
		}
	}

	marks := make([]Mark, 0)
	for k, row := range m.state.marks {
		if inCourse[k.b] {
			marks = append(marks, Mark{StudentID: k.a, AssessmentID: k.b, Mark: row.mark, Recorded: row.recorded})
		}
	}
	sort.Slice(marks, func(i, j int) bool {
		if marks[i].StudentID != marks[j].StudentID {
			return marks[i].StudentID < marks[j].StudentID
		}
		return marks[i].AssessmentID < marks[j].AssessmentID
	})
	return marks, nil
}

func (m *memStore) ListByStudent(ctx context.Context, studentID int) ([]StudentRecord, error) {
	if m.failReads {
		return nil, errStorage
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	courseNames := make(map[int]string)
	for _, c := range m.courses {
		courseNames[c.ID] = c.Name
	}

	records := make([]StudentRecord, 0)
	for _, a := range m.assessments {
		row, ok := m.state.marks[pair{studentID, a.ID}]
		if !ok {
			continue
		}
		records = append(records, StudentRecord{
			CourseID:       a.CourseID,
			CourseName:     courseNames[a.CourseID],
			AssessmentID:   a.ID,
			AssessmentName: a.Name,
			Weight:         a.Weight.InexactFloat64(),
			Mark:           row.mark.InexactFloat64(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CourseID != records[j].CourseID {
			return records[i].CourseID < records[j].CourseID
		}
		return records[i].AssessmentID < records[j].AssessmentID
	})
	return records, nil
}

type memStudents struct{ m *memStore }

func (r memStudents) GetByID(ctx context.Context, id int) (*student.Student, error) {
	if r.m.failReads {
		return nil, errStorage
	}
	for _, st := range r.m.students {
		if st.ID == id {
			st := st
			return &st, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r memStudents) GetByMatricNumber(ctx context.Context, matricNumber string) (*student.Student, error) {
	if r.m.failReads {
		return nil, errStorage
	}
	for _, st := range r.m.students {
		if st.MatricNumber == matricNumber {
			st := st
			return &st, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r memStudents) ListEnrolled(ctx context.Context, courseID int) ([]student.Student, error) {
	if r.m.failReads {
		return nil, errStorage
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	enrolled := make([]student.Student, 0)
	for _, st := range r.m.students {
		if r.m.state.enrollments[pair{st.ID, courseID}] {
			enrolled = append(enrolled, st)
		}
	}
	sort.Slice(enrolled, func(i, j int) bool { return enrolled[i].ID < enrolled[j].ID })
	return enrolled, nil
}

type memCourses struct{ m *memStore }

func (r memCourses) GetAll(ctx context.Context) ([]course.Course, error) {
	courses := append([]course.Course(nil), r.m.courses...)
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

type memAssessments struct{ m *memStore }

func (r memAssessments) GetByCourseAndName(ctx context.Context, courseID int, name string) (*assessment.Assessment, error) {
	if r.m.failReads {
		return nil, errStorage
	}
	for _, a := range r.m.assessments {
		if a.CourseID == courseID && a.Name == strings.TrimSpace(name) {
			a := a
			return &a, nil
		}
	}
	return nil, assessment.ErrAssessmentNotFound
}

func (r memAssessments) GetByCourse(ctx context.Context, courseID int) ([]assessment.Assessment, error) {
	if r.m.failReads {
		return nil, errStorage
	}
	list := make([]assessment.Assessment, 0)
	for _, a := range r.m.assessments {
		if a.CourseID == courseID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []MarkEvent
	err    error
}

func (p *recordingPublisher) SendMessage(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, value.(MarkEvent))
	return nil
}

package gradebook

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMark(t *testing.T) {
	weight := decimal.NewFromInt(30)

	tests := []struct {
		name    string
		mark    *float64
		wantErr bool
	}{
		{name: "Zero", mark: mark(0)},
		{name: "AtWeight", mark: mark(30)},
		{name: "Fraction", mark: mark(29.99)},
		{name: "Nil", mark: nil, wantErr: true},
		{name: "Negative", mark: mark(-1), wantErr: true},
		{name: "AboveWeight", mark: mark(30.01), wantErr: true},
		{name: "NaN", mark: mark(math.NaN()), wantErr: true},
		{name: "Inf", mark: mark(math.Inf(1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMark(tt.mark, weight)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			e := requireKind(t, err, KindValidation)
			require.NotNil(t, e.Bound)
			assert.Equal(t, 30.0, *e.Bound)
		})
	}
}

func TestValidateMark_CarriesValue(t *testing.T) {
	err := ValidateMark(mark(45.5), decimal.NewFromInt(30))

	e := requireKind(t, err, KindValidation)
	require.NotNil(t, e.Value)
	assert.Equal(t, 45.5, *e.Value)
	assert.Equal(t, "mark 45.5 is out of range: must be between 0 and 30", e.Message)
}

func TestForStudent(t *testing.T) {
	err := forStudent(ValidateMark(mark(-2), decimal.NewFromInt(10)), 7)

	e := requireKind(t, err, KindValidation)
	assert.Equal(t, 7, e.StudentID)
	assert.Equal(t, "student 7: mark -2 is out of range: must be between 0 and 10", e.Message)
}

func TestStructValidator(t *testing.T) {
	sv := newStructValidator()

	t.Run("Valid", func(t *testing.T) {
		err := sv.check(RecordPayload{
			Name:           "Ada",
			MatricNumber:   "U1001",
			CourseID:       1,
			AssessmentName: "A1",
			Mark:           mark(0),
		})
		assert.NoError(t, err)
	})

	t.Run("TranslatedMessages", func(t *testing.T) {
		err := sv.check(RecordPayload{
			Name:           "Ada",
			MatricNumber:   " ",
			CourseID:       1,
			AssessmentName: "A1",
			Mark:           mark(1),
		})

		e := requireKind(t, err, KindValidation)
		require.Len(t, e.Fields, 1)
		assert.Equal(t, "matric_number", e.Fields[0].Field)
		assert.Equal(t, "matric_number must not be blank", e.Fields[0].Error)
		assert.Equal(t, "invalid input: matric_number must not be blank", e.Message)
	})
}

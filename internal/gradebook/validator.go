package gradebook

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

// markScale is the number of decimals a mark is stored with (numeric(6,2)).
const markScale = 2

// ValidateMark checks a candidate mark against the weight of its assessment.
// The mark must be present, finite and within [0, weight].
func ValidateMark(mark *float64, weight decimal.Decimal) error {
	bound := weight.InexactFloat64()

	if mark == nil {
		return &Error{
			Kind:    KindValidation,
			Message: "mark is required",
			Bound:   &bound,
			Fields:  []FieldError{{Field: "mark", Error: "mark is required"}},
		}
	}

	v := *mark
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &Error{
			Kind:    KindValidation,
			Message: "mark must be a number",
			Bound:   &bound,
			Fields:  []FieldError{{Field: "mark", Error: "mark must be a number"}},
		}
	}

	if d := decimal.NewFromFloat(v); d.IsNegative() || d.GreaterThan(weight) {
		msg := fmt.Sprintf("mark %s is out of range: must be between 0 and %s", d.String(), weight.String())
		return &Error{
			Kind:    KindValidation,
			Message: msg,
			Value:   &v,
			Bound:   &bound,
			Fields:  []FieldError{{Field: "mark", Error: msg}},
		}
	}

	return nil
}

// forStudent ties a mark validation failure to the batch entry it came from.
func forStudent(err error, studentID int) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	e.StudentID = studentID
	e.Message = fmt.Sprintf("student %d: %s", studentID, e.Message)
	return e
}

// entryError attaches the student id of the batch entry a struct validation
// failure points at ("entries[1].mark").
func entryError(err error, entries []MarkEntry) error {
	var e *Error
	if !errors.As(err, &e) || len(e.Fields) == 0 {
		return err
	}
	var i int
	if _, scanErr := fmt.Sscanf(e.Fields[0].Field, "entries[%d]", &i); scanErr != nil {
		return err
	}
	if i < 0 || i >= len(entries) || entries[i].StudentID <= 0 {
		return err
	}
	return forStudent(err, entries[i].StudentID)
}

func toDecimal(mark float64) decimal.Decimal {
	return decimal.NewFromFloat(mark).Round(markScale)
}

// structValidator validates request payloads and reports errors under their
// JSON field names.
type structValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newStructValidator() *structValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterTranslation("notblank", trans,
		func(t ut.Translator) error { return t.Add("notblank", "{0} must not be blank", true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("notblank", fe.Field())
			return s
		},
	)

	return &structValidator{validate: v, trans: trans}
}

func (sv *structValidator) check(s interface{}) error {
	err := sv.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid input", Err: err}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe), Error: fe.Translate(sv.trans)})
	}

	return &Error{
		Kind:    KindValidation,
		Message: "invalid input: " + fields[0].Error,
		Fields:  fields,
	}
}

// fieldPath drops the struct name from the namespace: "entries[1].mark".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

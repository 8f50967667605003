package recurrence

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/warp/activity-engine/generic"
)

// ErrInvalidComposition is wrapped by every ValidationError.
var ErrInvalidComposition = errors.New("invalid activity composition")

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags
const (
	monthLabelTag = "month_label"
	workdayTag    = "workday"
	emptyDatesTag = "empty_dates"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(monthLabelTag, monthLabelValidation)
	validate.RegisterStructValidation(entryStructValidation, Entry{})
}

func monthLabelValidation(fl validator.FieldLevel) bool {
	_, err := generic.ParseMonth(fl.Field().String())
	return err == nil
}

// entryStructValidation checks the weekday range of weekly rows.
func entryStructValidation(sl validator.StructLevel) {
	e, ok := sl.Current().Interface().(Entry)
	if !ok || e.Mode != ModeWeekly || e.Weekday == nil {
		return
	}
	if !ValidWeekday(*e.Weekday) {
		sl.ReportError(e.Weekday, "weekday", "Weekday", workdayTag, "")
	}
}

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// Problem is one user-facing composition issue. Row is -1 for form-level fields.
type Problem struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError blocks a submission. Nothing is submitted when it is returned.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Row >= 0 {
			msgs = append(msgs, "row "+strconv.Itoa(p.Row+1)+": "+p.Message)
		} else {
			msgs = append(msgs, p.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidComposition }

// Message is the first problem, suitable for a single-line prompt.
func (e *ValidationError) Message() string {
	if len(e.Problems) == 0 {
		return ErrInvalidComposition.Error()
	}
	return e.Problems[0].Message
}

var messages = map[string]string{
	"class_id.required":          "choose a class",
	"mode.required":              "choose weekly or picked dates",
	"mode.oneof":                 "choose weekly or picked dates",
	"weekday.required_if":        "choose a weekday",
	"weekday.workday":            "choose a weekday between Sunday and Thursday",
	"dates.required_if":          "pick at least one date",
	"dates.max":                  "pick at most 5 dates",
	"dates.empty_dates":          "no dates fall in this period",
	"payment_period.required":    "choose a payment period",
	"payment_period.month_label": "payment period must look like MM-YY",
	"entries.required":           "add at least one activity",
	"entries.min":                "add at least one activity",
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Translate(translator)
		}
		out.Problems = append(out.Problems, Problem{Row: rowOf(fe.Namespace()), Field: fe.Field(), Message: msg})
	}
	return out
}

// rowOf extracts the entry index from a namespace like "Form.entries[2].class_id".
func rowOf(ns string) int {
	i := strings.Index(ns, "entries[")
	if i < 0 {
		return -1
	}
	rest := ns[i+len("entries["):]
	j := strings.IndexByte(rest, ']')
	if j < 0 {
		return -1
	}
	n, err := strconv.Atoi(rest[:j])
	if err != nil {
		return -1
	}
	return n
}

func problem(row int, field, tag string) *ValidationError {
	return &ValidationError{Problems: []Problem{{Row: row, Field: field, Message: messages[field+"."+tag]}}}
}

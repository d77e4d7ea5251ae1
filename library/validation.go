package library

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator runs the field rules declared in struct tags and the cross-field
// book rules. Failures come back as a *ValidationError listing every problem.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator with the notblank rule registered and field
// names reported by their JSON name.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates the tags of s.
func (v *Validator) Struct(s any) error {
	return asValidationError(v.problems(s))
}

// Book validates the tags of b plus the borrow fields: the date may not lie in
// the future and isBorrowed must agree with borrowedDate and borrowedBy.
func (v *Validator) Book(b Book, now time.Time) error {
	problems := v.problems(b)
	if b.BorrowedDate != nil && b.BorrowedDate.After(now) {
		problems = append(problems, "Borrowed date cannot be in the future.")
	}
	switch {
	case b.IsBorrowed && b.BorrowedDate == nil:
		problems = append(problems, "A borrowed book must have a borrowed date.")
	case !b.IsBorrowed && b.BorrowedDate != nil:
		problems = append(problems, "A book with a borrowed date must be marked as borrowed.")
	}
	switch {
	case b.IsBorrowed && b.BorrowedBy == nil:
		problems = append(problems, "A borrowed book must have a borrower.")
	case !b.IsBorrowed && b.BorrowedBy != nil:
		problems = append(problems, "A book with a borrower must be marked as borrowed.")
	}
	return asValidationError(problems)
}

// Member validates the tags of m, including the email format.
func (v *Validator) Member(m Member) error { return v.Struct(m) }

// ID rejects identifiers that are zero or negative.
func (v *Validator) ID(entity string, id int64) error {
	if id <= 0 {
		return InvalidArgument(fmt.Sprintf("Invalid %s ID.", entity))
	}
	return nil
}

func (v *Validator) problems(s any) []string {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := label(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required."
	case "email":
		return field + " is not valid."
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s cannot be less than %s.", field, fe.Param())
	}
	return fmt.Sprintf("%s failed the %s rule.", field, fe.Tag())
}

func label(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func asValidationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

package core

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"equitylens/internal/types"
)

// tickerPattern matches exchange ticker symbols: 1-10 upper/lower letters,
// digits, dots or dashes (e.g. "TSLA", "BRK.B").
var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,10}$`)

// Validator wraps go-playground/validator with the platform's custom rules
// and translates validation failures into structured AppErrors.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// "ticker": a plausible exchange symbol. Normalization to upper-case
	// happens in the domain layer; validation only rejects garbage.
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// ValidateStruct validates the struct's `validate` tags and returns a
// *types.AppError describing the first set of failures, or nil when valid.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation misconfigured", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	missing := false
	for _, fe := range verrs {
		fields[fieldName(fe)] = fe.Tag()
		if fe.Tag() == "required" {
			missing = true
		}
	}

	code := types.ErrCodeValidationInvalidField
	msg := "one or more fields are invalid"
	if missing {
		code = types.ErrCodeValidationMissingField
		msg = "one or more required fields are missing"
	}

	return types.NewAppErrorWithDetails(code, msg, err, map[string]any{"fields": fields})
}

// fieldName lowercases the leading character of the struct field name so the
// error details match the JSON wire casing (userId, companyName, ...).
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"katabatic/internal/types"
)

// Validator wraps go-playground/validator with the domain tags used by
// request bodies:
//
//	clock  "HH:MM" with a valid hour and minute
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator reporting fields by their JSON names.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("clock", validateClock); err != nil {
		logger.Error("failed to register clock validation", "error", err)
	}
	return &Validator{validate: v, logger: logger}
}

func validateClock(fl validator.FieldLevel) bool {
	w := types.TimeWindow{Start: fl.Field().String(), End: "00:00"}
	_, _, err := w.Hours()
	return err == nil
}

// ValidateStruct runs the struct's validate tags. Failures come back as a
// validation_missing_required_field or validation_threshold_out_of_range
// AppError listing every offending field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	code := types.ErrCodeValidationThresholdRange
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe)
		fields[path] = describe(fe)
		if fe.Tag() == "required" {
			code = types.ErrCodeValidationMissingField
		}
	}
	first := verrs[0]
	return types.NewAppErrorWithDetails(code,
		fmt.Sprintf("invalid field %s: %s", fieldPath(first), describe(first)),
		err, map[string]any{"fields": fields})
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "clock":
		return "must be HH:MM"
	default:
		return "failed " + fe.Tag()
	}
}

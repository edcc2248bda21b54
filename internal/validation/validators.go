package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/wordtag/internal/export"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("export_format", validateExportFormat); err != nil {
		panic(fmt.Sprintf("failed to register export_format validator: %v", err))
	}
}

// validateExportFormat validates that a string names an export format
func validateExportFormat(fl validator.FieldLevel) bool {
	_, err := export.ParseFormat(fl.Field().String())
	return err == nil
}

// Page holds pagination query parameters
type Page struct {
	Page     int `validate:"min=1"`
	PageSize int `validate:"min=1,max=100"`
}

// CheckStorable rejects text that Postgres cannot hold in a TEXT column.
// Everything else, control characters included, is stored as sent.
func CheckStorable(text string) error {
	if strings.ContainsRune(text, 0) {
		return errors.New("text cannot contain NUL characters")
	}
	return nil
}

// ValidateExportFormat validates an export format query value
func ValidateExportFormat(value string) error {
	if err := Validate.Var(value, "export_format"); err != nil {
		return fmt.Errorf("invalid format: %s (must be 'txt' or 'csv')", value)
	}
	return nil
}

// Message turns a validator error into a short client-facing message
func Message(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "min", "max":
			return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return "Validation failed"
}

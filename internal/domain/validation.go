package domain

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakashimaa/product-showcase/pkg/utils"
)

var productURLPattern = regexp.MustCompile(`^(ftp|http|https)://[^ "]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("producturl", func(fl validator.FieldLevel) bool {
		return IsProductURL(fl.Field().String())
	})

	return v
}

// IsProductURL accepts ftp, http and https URLs without spaces or quotes.
func IsProductURL(s string) bool {
	return productURLPattern.MatchString(s)
}

// Validate checks input against its validate tags and returns a
// *ValidationError describing every failing field.
func Validate(input any) error {
	if err := validate.Struct(input); err != nil {
		return &ValidationError{Fields: utils.FormatValidationError(err)}
	}

	return nil
}

// Normalize trims surrounding whitespace from every text field.
func (d ProductDraft) Normalize() ProductDraft {
	return ProductDraft{
		Name:        strings.TrimSpace(d.Name),
		Company:     strings.TrimSpace(d.Company),
		URL:         strings.TrimSpace(d.URL),
		Description: strings.TrimSpace(d.Description),
		ImageURL:    strings.TrimSpace(d.ImageURL),
	}
}

func (d ProductDraft) Validate() error {
	return Validate(d)
}

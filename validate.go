package webidkit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator with the webid custom tags
// registered. validator.Validate is safe for concurrent use.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("webid", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true // Empty values handled by 'required' tag
			}
			return checkWebID(s) == nil
		})
		_ = v.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
			return checkPrintable(fl.Field().String()) == nil
		})
		validate = v
	})
	return validate
}

// ValidateStruct validates s against its `validate` struct tags. The first
// failing field is reported as a *ValidationError. Supported custom tags are
// "webid" (absolute URI with a host) and "printable" (valid UTF-8 without
// control characters).
func ValidateStruct(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Namespace(), Message: describeTag(fe)}
	}
	return &ValidationError{Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "webid":
		return "must be an absolute URI with a host"
	case "printable":
		return "must not contain control characters"
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// checkPrintable rejects invalid UTF-8 and control characters. Both would
// corrupt the line-oriented OpenSSL configuration format.
func checkPrintable(s string) error {
	if !utf8.ValidString(s) {
		return errors.New("contains invalid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("contains control character %U", r)
		}
	}
	return nil
}

func checkWebID(s string) error {
	if err := checkPrintable(s); err != nil {
		return err
	}
	if strings.ContainsAny(s, " \t") {
		return errors.New("contains whitespace")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		return errors.New("is not an absolute URI")
	}
	if u.Host == "" {
		return errors.New("has no host")
	}
	return nil
}

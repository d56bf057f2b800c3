package dto

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"seller-payout-service/pkg/apperror"
	"seller-payout-service/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// validateSafeID allows alphanumeric, underscore, dash, dot and colon.
func validateSafeID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || safeStringRe.MatchString(s)
}

// validateDecimalAmount accepts positive decimal strings with at most two fractional digits.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	minor, err := money.ParseMinor(fl.Field().String())
	return err == nil && minor > 0
}

// ParseAmount converts a validated decimal string into minor units.
func ParseAmount(field, s string) (int64, error) {
	minor, err := money.ParseMinor(s)
	if err != nil {
		return 0, apperror.ValidationFields("invalid amount", map[string]string{field: err.Error()})
	}
	if minor <= 0 {
		return 0, apperror.ValidationFields("invalid amount", map[string]string{field: "must be greater than zero"})
	}
	return minor, nil
}

// BindingError turns a gin binding failure into a VAL_001 error with one
// message per offending field.
func BindingError(err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("malformed request body")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return apperror.ValidationFields("invalid request", fields)
}

// fieldPath drops the top-level struct name: "CreateWithdrawalRequest.amount" -> "amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "number":
		return "must contain digits only"
	case "decimal_amount":
		return "must be a positive decimal amount with at most two fractional digits"
	case "safe_id":
		return "may contain only letters, digits, '_', '-', '.' and ':'"
	}
	return "is invalid"
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Used on free text that ends
// up in logs and the audit trail.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// IsSafeID applies the safe_id rule to values that arrive outside a body,
// such as the Idempotency-Key header.
func IsSafeID(s string) bool {
	return len(s) <= 128 && safeStringRe.MatchString(s)
}

package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
)

// SetupValidator configures gin's validator: errors name the json (or form)
// field, and money fields get the decimal_gte0 and decimal_gt0 tags.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gte0", decimalCheck(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = v.RegisterValidation("decimal_gt0", decimalCheck(decimal.Decimal.IsPositive))
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// decimalCheck validates a decimal field, or a string holding one. A nil
// *decimal.Decimal counts as zero.
func decimalCheck(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		switch v := fl.Field().Interface().(type) {
		case string:
			d, err := decimal.NewFromString(v)
			return err == nil && ok(d)
		case decimal.Decimal:
			return ok(v)
		case *decimal.Decimal:
			if v == nil {
				return ok(decimal.Zero)
			}
			return ok(*v)
		}
		return false
	}
}

// messages renders a failed tag; strings read "characters" after bounds.
var messages = map[string]func(e validator.FieldError) string{
	"required":     func(validator.FieldError) string { return "This field is required" },
	"numeric":      func(validator.FieldError) string { return "Must be numeric" },
	"min":          func(e validator.FieldError) string { return "Must be at least " + e.Param() + unit(e) },
	"max":          func(e validator.FieldError) string { return "Must be at most " + e.Param() + unit(e) },
	"len":          func(e validator.FieldError) string { return "Must be exactly " + e.Param() + " characters" },
	"oneof":        func(e validator.FieldError) string { return "Must be one of: " + e.Param() },
	"gte":          bound("Must not be negative", "Must be greater than or equal to "),
	"decimal_gte0": bound("Must not be negative", ""),
	"gt":           bound("Must be positive", "Must be greater than "),
	"decimal_gt0":  bound("Must be positive", ""),
	"lte":          func(e validator.FieldError) string { return "Must be less than or equal to " + e.Param() },
	"ltfield":      func(e validator.FieldError) string { return "Must be before " + e.Param() },
}

func unit(e validator.FieldError) string {
	if e.Kind() == reflect.String {
		return " characters"
	}
	return ""
}

func bound(bare, withParam string) func(e validator.FieldError) string {
	return func(e validator.FieldError) string {
		if e.Param() == "" {
			return bare
		}
		return withParam + e.Param()
	}
}

func validationMessage(e validator.FieldError) string {
	if render, ok := messages[e.Tag()]; ok {
		return render(e)
	}
	return "Invalid value"
}

// FormatValidationErrors builds the validation envelope. Errors that are not
// validator errors, such as malformed JSON, carry no details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details = make([]dto.ValidationDetail, 0, len(verrs))
		for _, e := range verrs {
			details = append(details, dto.ValidationDetail{Field: e.Field(), Message: validationMessage(e)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError aborts with 400 and the validation envelope.
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeValidation), FormatValidationErrors(err, GetRequestID(c)))
}

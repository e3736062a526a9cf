package fieldreports

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("latitude", validateLatitude)
	v.RegisterValidation("longitude", validateLongitude)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

var stripChars = strings.NewReplacer("<", "", ">", "", "&", "", "'", "", `"`, "")

// Sanitize removes markup-significant characters and trims.
func Sanitize(s string) string {
	return strings.TrimSpace(StripMarkup(s))
}

// StripMarkup removes markup-significant characters and keeps whitespace as is.
// Search queries go through it so stored and queried text agree on the characters.
func StripMarkup(s string) string {
	return stripChars.Replace(s)
}

func (r *SubmitRequest) sanitize() {
	r.UserName = Sanitize(r.UserName)
	r.Purpose = Sanitize(r.Purpose)
	r.Vehicle = Sanitize(r.Vehicle)
	r.Notes = Sanitize(r.Notes)
	r.TimeOut = strings.TrimSpace(r.TimeOut)
	r.TimeIn = strings.TrimSpace(r.TimeIn)
}

// validateSubmit checks struct rules and parses both timestamps.
func validateSubmit(req *SubmitRequest, upload *Upload, loc *time.Location) (timeOut, timeIn time.Time, err error) {
	verr := &ValidationError{}

	if err := validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.add(fe.Field(), fieldMessage(fe))
			}
		} else {
			return time.Time{}, time.Time{}, err
		}
	}

	if req.TimeOut != "" {
		if timeOut, err = ParseReportTime(req.TimeOut, loc); err != nil {
			verr.add("time_out", err.Error())
		}
	}
	if req.TimeIn != "" {
		if timeIn, err = ParseReportTime(req.TimeIn, loc); err != nil {
			verr.add("time_in", err.Error())
		}
	}
	if upload == nil || len(upload.Data) == 0 {
		verr.add("photo", ErrPhotoRequired.Error())
	}

	if len(verr.Fields) > 0 {
		return time.Time{}, time.Time{}, verr
	}
	return timeOut, timeIn, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "latitude":
		return "must be between -90 and 90"
	case "longitude":
		return "must be between -180 and 180"
	default:
		return "is invalid"
	}
}

const localMinuteLayout = "2006-01-02T15:04"

// ParseReportTime accepts RFC3339 or a datetime-local value interpreted in loc.
func ParseReportTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(localMinuteLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 or YYYY-MM-DDTHH:MM")
}

package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"fitbook/pkg/logger"
	"fitbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	log.Debug("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ReservationValidator) Validate(req *model.ReserveRequest) error {
	if err := v.validate.Struct(req); err != nil {
		v.logger.Warn("Reservation validation failed",
			"member_id", req.MemberID,
			"session_id", req.SessionID,
			"error", err,
		)
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		out := make(ValidationErrors, 0, len(validationErrs))
		for _, fe := range validationErrs {
			message := fe.Error()
			switch fe.Tag() {
			case "required":
				message = fmt.Sprintf("%s is required", fe.Field())
			case "mongodb":
				message = fmt.Sprintf("%s must be a valid 24-character hex id", fe.Field())
			}
			out = append(out, ValidationError{Field: fe.Field(), Message: message})
		}
		return out
	}
	return nil
}

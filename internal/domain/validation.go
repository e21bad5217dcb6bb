package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// entityValidator возвращает общий валидатор; имена полей берутся из json-тегов,
// чтобы ошибки совпадали с названиями колонок.
func entityValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// required пропускает строку из пробелов.
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if id, ok := field.Interface().(uuid.UUID); ok && id != uuid.Nil {
				return id.String()
			}
			return ""
		}, uuid.UUID{})
		validate = v
	})
	return validate
}

// validateStruct прогоняет теги validate и возвращает первую ошибку как *ValidationError.
func validateStruct(entity any) error {
	err := entityValidator().Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate %T: %w", entity, err)
	}

	fe := fieldErrs[0]
	return NewValidationError(fe.Field(), describeTag(fe))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// NextUpdateStamp возвращает отметку времени строго позже prev (с точностью до микросекунды),
// чтобы последовательные изменения одной сущности давали возрастающий updated_at.
func NextUpdateStamp(prev *time.Time, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if prev == nil {
		return now
	}
	floor := prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

// NewID генерирует сортируемый по времени UUIDv7 для локальности индексов.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

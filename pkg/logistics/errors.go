package logistics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/regiment-logi/quartermaster/pkg/storage"
)

var (
	// ErrNotFound is returned when an id does not resolve inside the caller's regiment.
	ErrNotFound = storage.ErrNotFound
	// ErrValidation is returned for malformed input. Nothing is written.
	ErrValidation = errors.New("validation failed")
)

// ValidationError lists failing fields with the rule each one broke.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+":"+tag)
	}
	sort.Strings(parts)
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (s *Service) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func invalid(field, rule string) error {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// Package schema valida registros antes de escribirlos en el almacén.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// Nombres de esquema.
const (
	Product = "producto"
	Batch   = "lote"
)

// Validator valida registros por nombre de esquema. Seguro para uso concurrente.
type Validator struct {
	v       *validator.Validate
	input   *validator.Validate
	schemas map[string]reflect.Type
}

// New construye el validador con las reglas decimales registradas.
func New() *Validator {
	v := validator.New()
	// decimal.Decimal se valida como número (gt, gte...).
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	// las entradas HTTP reportan el campo por su clave JSON
	input := validator.New()
	input.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	input.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		v:     v,
		input: input,
		schemas: map[string]reflect.Type{
			Product: reflect.TypeOf(entity.Product{}),
			Batch:   reflect.TypeOf(entity.Batch{}),
		},
	}
}

// Validate devuelve *domain.ValidationError si el registro no cumple el esquema.
func (s *Validator) Validate(schemaName string, record any) error {
	want, ok := s.schemas[schemaName]
	if !ok {
		return &domain.ValidationError{Schema: schemaName, Issues: []domain.ValidationIssue{{Message: "esquema desconocido"}}}
	}
	rv := reflect.ValueOf(record)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return &domain.ValidationError{Schema: schemaName, Issues: []domain.ValidationIssue{{Message: "registro nulo"}}}
		}
		rv = rv.Elem()
	}
	if rv.Type() != want {
		return &domain.ValidationError{Schema: schemaName, Issues: []domain.ValidationIssue{{
			Message: fmt.Sprintf("se esperaba %s, llegó %s", want.Name(), rv.Type().Name()),
		}}}
	}

	return toValidationError(schemaName, s.v.Struct(rv.Interface()), func(fe validator.FieldError) string {
		return fe.Namespace()
	})
}

// Input valida una entrada de la API (DTO) con sus etiquetas validate.
func (s *Validator) Input(in any) error {
	if in == nil {
		return domain.NewValidationError("", "entrada vacía")
	}
	return toValidationError("", s.input.Struct(in), func(fe validator.FieldError) string {
		return fe.Field()
	})
}

func toValidationError(schemaName string, err error, field func(validator.FieldError) string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Schema: schemaName, Issues: []domain.ValidationIssue{{Message: err.Error()}}}
	}
	out := &domain.ValidationError{Schema: schemaName}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, domain.ValidationIssue{
			Field:   field(fe),
			Message: issueMessage(fe),
		})
	}
	return out
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "requerido"
	case "gt":
		return "debe ser mayor que " + fe.Param()
	case "gte":
		return "no puede ser menor que " + fe.Param()
	case "lte":
		return "no puede ser mayor que " + fe.Param()
	case "max":
		return "excede el máximo " + fe.Param()
	case "min":
		return "no alcanza el mínimo " + fe.Param()
	case "email":
		return "no es un email válido"
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	default:
		return "no cumple la regla " + fe.Tag()
	}
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

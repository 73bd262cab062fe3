package ml

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
			return true
		}
		x := f.Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	})
	return v
}

// FieldIssue is a single failed validation rule on a record column.
type FieldIssue struct {
	Column string
	Value  interface{}
	Rule   string
	Param  string
}

func (i FieldIssue) String() string {
	if i.Param == "" {
		return fmt.Sprintf("%s=%v fails %s", i.Column, i.Value, i.Rule)
	}
	return fmt.Sprintf("%s=%v fails %s=%s", i.Column, i.Value, i.Rule, i.Param)
}

// CheckRecord returns every rule the record violates.
func CheckRecord(rec FeatureRecord) []FieldIssue {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldIssue{{Rule: err.Error()}}
	}
	issues := make([]FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, FieldIssue{
			Column: fe.Field(),
			Value:  fe.Value(),
			Rule:   fe.Tag(),
			Param:  fe.Param(),
		})
	}
	return issues
}

// ValidateRecord rejects records with out-of-range or non-finite values.
// The returned error matches ErrSchemaMismatch.
func ValidateRecord(rec FeatureRecord) error {
	var result *multierror.Error
	for _, issue := range CheckRecord(rec) {
		result = multierror.Append(result, &SchemaError{Column: issue.Column, Reason: issue.String()})
	}
	return result.ErrorOrNil()
}

// CheckRow verifies that row carries exactly the given columns with finite or missing values.
func CheckRow(row Row, columns []string) error {
	var result *multierror.Error
	for _, name := range columns {
		v, ok := row[name]
		if !ok {
			result = multierror.Append(result, &SchemaError{Column: name, Reason: "column missing"})
			continue
		}
		if math.IsInf(v, 0) {
			result = multierror.Append(result, &SchemaError{Column: name, Reason: "value is not finite"})
		}
	}
	if len(row) != len(columns) {
		known := make(map[string]struct{}, len(columns))
		for _, name := range columns {
			known[name] = struct{}{}
		}
		for name := range row {
			if _, ok := known[name]; !ok {
				result = multierror.Append(result, &SchemaError{Column: name, Reason: "unknown column"})
			}
		}
	}
	return result.ErrorOrNil()
}

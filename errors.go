package records

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyOptionName reports an option pair without a usable name.
	ErrEmptyOptionName = errors.New("records: option name must not be empty")
	// ErrMalformedOptions reports an options value that is not a sequence.
	ErrMalformedOptions = errors.New("records: options must be a sequence of pairs")
	// ErrMalformedPair reports a sequence element that is not a name/value pair.
	ErrMalformedPair = errors.New("records: option pair is malformed")
	// ErrMalformedRecord reports a nil record.
	ErrMalformedRecord = errors.New("records: record is malformed")
	// ErrMissingRequiredField reports a projected record lacking a required key.
	ErrMissingRequiredField = errors.New("records: required field missing")
	// ErrDecodeRecord reports a projected record that does not fit the typed
	// target of ProjectInto.
	ErrDecodeRecord = errors.New("records: projected record does not decode")
)

// ValidationError identifies the record (and pair, when known) that made a
// projection call fail. PairIndex is -1 for record-level problems.
type ValidationError struct {
	RecordID    string
	RecordIndex int
	PairIndex   int
	Field       string
	Reason      string
	Err         error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("records: invalid record")
	if e.RecordID != "" {
		fmt.Fprintf(&b, " %q", e.RecordID)
	}
	fmt.Fprintf(&b, " at index %d", e.RecordIndex)
	if e.PairIndex >= 0 {
		fmt.Fprintf(&b, " pair %d", e.PairIndex)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures a derived-field failure alongside the originating
// error.
type EvaluationError struct {
	Engine   string
	Expr     string
	Field    string
	RecordID string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("records: %s evaluator %s field=%s record=%s: %v",
		e.Engine, describeExpression(e.Expr), e.Field, describeRecordID(e.RecordID), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func describeRecordID(id string) string {
	if id == "" {
		return "<unknown>"
	}
	return id
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "records:") {
		return err
	}
	return fmt.Errorf("records: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches metadata to err, filling only the fields an
// existing EvaluationError left empty.
func wrapEvaluationError(engine, expr, field, recordID string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Field == "" {
			evalErr.Field = field
		}
		if evalErr.RecordID == "" {
			evalErr.RecordID = recordID
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:   engine,
		Expr:     expr,
		Field:    field,
		RecordID: recordID,
		Err:      err,
	}
}

func recordError(index int, id string, cause error, reason string) *ValidationError {
	return &ValidationError{
		RecordID:    id,
		RecordIndex: index,
		PairIndex:   -1,
		Reason:      reason,
		Err:         cause,
	}
}

func pairError(index int, id string, pair int, cause error, reason string) *ValidationError {
	return &ValidationError{
		RecordID:    id,
		RecordIndex: index,
		PairIndex:   pair,
		Reason:      reason,
		Err:         cause,
	}
}

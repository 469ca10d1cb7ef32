package record

import "fmt"

// ValidationError is a single record failing structural checks. It is recovered locally: the record is dropped
// and counted, the batch continues.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

// AtRow returns a copy of the error attributed to the given source row.
func (e *ValidationError) AtRow(row int) *ValidationError {
	c := *e
	c.Row = row
	return &c
}

package jinja

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/pkg/errors"
)

var Filters *exec.FilterSet

func init() { //nolint:gochecknoinits
	Filters = gonja.DefaultEnvironment.Filters
	err := Filters.Register("add_days", addDays)
	if err != nil {
		panic(err)
	}

	err = Filters.Register("snake_case", snakeCase)
	if err != nil {
		panic(err)
	}
}

func addDays(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
	if in.IsError() {
		return in
	}
	if p := params.ExpectArgs(1); p.IsError() {
		return exec.AsValue(errors.Wrap(p, "'add_days' accepts only a single argument"))
	}

	parsed, format, err := date.ParseTimeWithFormat(in.String())
	if err != nil {
		return exec.AsValue(errors.Wrap(err, "invalid date format"))
	}

	days := params.Args[0].String()
	daysInt, err := strconv.Atoi(days)
	if err != nil {
		return exec.AsValue(errors.Errorf("invalid number of days for add_days, it must be a valid integer, '%s' given", days))
	}

	return exec.AsValue(parsed.AddDate(0, 0, daysInt).Format(format))
}

// snakeCase turns names like "Booking Details" or "bookingDetails" into "booking_details".
func snakeCase(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
	if in.IsError() {
		return in
	}

	var b strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(in.String()) {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}

	return exec.AsValue(strings.Trim(b.String(), "_"))
}

package record

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const nullMarker = "\x00"

// Hash computes the content hash of the given fields in the order they are declared. Two records produce the
// same hash only if every listed field has the same canonical value; null and empty string are distinct.
func Hash(r Record, fields []string) string {
	d := xxhash.New()
	for _, f := range fields {
		_, _ = d.WriteString(f)
		_, _ = d.WriteString("=")

		v := r[f]
		if v == nil {
			_, _ = d.WriteString(nullMarker)
		} else {
			_, _ = d.WriteString(Canonical(v))
		}
		_, _ = d.WriteString(keySeparator)
	}

	return strconv.FormatUint(d.Sum64(), 16)
}

package config

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func ConnectionNotFoundError(name string, available []string) error {
	if len(available) == 0 {
		return errors.Errorf("connection '%s' not found, the selected environment has no connections", name)
	}

	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return errors.Errorf("connection '%s' not found, available connections are: %s", name, strings.Join(sorted, ", "))
}

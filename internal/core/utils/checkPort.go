package utils

import (
	"errors"
	"fmt"
	"strings"
)

func CheckPort(port int, isSetByUser bool) error {
	if (port > 49151 || port < 1024) && isSetByUser {
		errMessage := fmt.Sprintf("invalid 'port' value: %d", port)
		return errors.New(errMessage)
	}
	return nil
}

// GetStringArray splits a comma-separated flag value, dropping blanks.
func GetStringArray(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

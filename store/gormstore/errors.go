package gormstore

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isUniqueViolation recognizes unique-constraint failures whether or not the
// handle was opened with TranslateError.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"unique constraint failed", // sqlite
		"duplicate key value",      // postgres
		"duplicate entry",          // mysql
		"sqlstate 23505",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

package utils

import "strconv"

// ParseID reads a positive numeric path id. Anything else is reported as not ok.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

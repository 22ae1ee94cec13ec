package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseKeyPoints reads an enumerated list out of free-form model output.
// Lines starting with a digit, "-" or "•" are kept with their marker removed;
// anything else is ignored. At most limit points are returned.
func ParseKeyPoints(response string, limit int) []string {
	if limit <= 0 {
		limit = 8
	}
	points := make([]string, 0, limit)

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		first, size := utf8.DecodeRuneInString(line)
		if !unicode.IsDigit(first) && first != '-' && first != '•' {
			continue
		}

		var point string
		if i := strings.Index(line, "."); i >= 0 {
			point = line[i+1:]
		} else {
			point = line[size:]
		}
		point = strings.TrimSpace(point)
		if point == "" {
			continue
		}

		points = append(points, point)
		if len(points) == limit {
			break
		}
	}

	return points
}

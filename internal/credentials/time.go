package credentials

import "time"

// parseSTSTime parses the ISO-8601 timestamp STS embeds in XML responses.
func parseSTSTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

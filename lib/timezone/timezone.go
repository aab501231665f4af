package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic(err)
	}
}

// force timezone to be KST because the portal renders all dates in campus
// local time regardless of where this process runs.
func Now() time.Time {
	return time.Now().In(Location)
}

var dateLayouts = []string{
	"2006.01.02",
	"2006-01-02",
	"06.01.02",
}

// ParseDate parses a published-date cell as rendered by the portal.
// Returns the zero time when no known layout matches.
func ParseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, Location)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

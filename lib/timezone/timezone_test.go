package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in     string
		expect time.Time
	}{
		{
			in:     "2024.09.02",
			expect: time.Date(2024, time.September, 2, 0, 0, 0, 0, Location),
		},
		{
			in:     "2024-09-02",
			expect: time.Date(2024, time.September, 2, 0, 0, 0, 0, Location),
		},
		{
			in:     "24.09.02",
			expect: time.Date(2024, time.September, 2, 0, 0, 0, 0, Location),
		},
		{
			in:     "not a date",
			expect: time.Time{},
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expect, ParseDate(test.in), test.in)
	}
}

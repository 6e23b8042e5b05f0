package timeutil

import (
	"encoding/json"
	"strconv"
	"time"
)

// Time unmarshals from an RFC3339 string, integer unix seconds, or float
// unix seconds, whichever the capture tool decided to emit.
type Time time.Time

func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == "{}" {
		return nil
	}
	if s[0] == '"' {
		tt, err := time.Parse(`"`+time.RFC3339+`"`, s)
		if err != nil {
			return err
		}
		*t = Time(tt)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	sec, frac := int64(f), f-float64(int64(f))
	*t = Time(time.Unix(sec, int64(frac*float64(time.Second))))
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t))
}

func (t Time) Time() time.Time {
	return time.Time(t)
}

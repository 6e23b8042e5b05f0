package timeutil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUnmarshalTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "RFC3339 string",
			input: `"2023-06-01T10:31:15Z"`,
			want:  time.Date(2023, 6, 1, 10, 31, 15, 0, time.UTC),
		},
		{
			name:  "integer unix seconds",
			input: `1685615475`,
			want:  time.Unix(1685615475, 0),
		},
		{
			name:  "float unix seconds",
			input: `1685615475.5`,
			want:  time.Unix(1685615475, 500000000),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var tt Time
			if err := json.Unmarshal([]byte(test.input), &tt); err != nil {
				t.Fatal(err)
			}
			if !tt.Time().Equal(test.want) {
				t.Fatalf("expected %v, got %v", test.want, tt.Time())
			}
		})
	}
}

func TestUnmarshalTimeNull(t *testing.T) {
	var tt Time
	if err := json.Unmarshal([]byte("null"), &tt); err != nil {
		t.Fatal(err)
	}
	if !tt.Time().IsZero() {
		t.Fatalf("expected zero time, got %v", tt.Time())
	}
}

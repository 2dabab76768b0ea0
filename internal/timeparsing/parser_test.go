package timeparsing

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "RFC3339 UTC",
			input: "2024-03-01T10:20:30Z",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name:  "RFC3339 with offset is normalized to UTC",
			input: "2024-03-01T10:20:30+02:00",
			want:  time.Date(2024, 3, 1, 8, 20, 30, 0, time.UTC),
		},
		{
			name:  "RFC3339Nano",
			input: "2024-03-01T10:20:30.123456789Z",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 123456789, time.UTC),
		},
		{
			name:  "SQL datetime",
			input: "2024-03-01 10:20:30",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name:  "compact offset",
			input: "2024-03-01T10:20:30+0000",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2024-03-01",
			want:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "epoch seconds",
			input: "1709288430",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name:  "epoch millis",
			input: "1709288430500",
			want:  time.Date(2024, 3, 1, 10, 20, 30, 500_000_000, time.UTC),
		},
		{
			name:  "surrounding whitespace",
			input: "  2024-03-01  ",
			want:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "last tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimestamp(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestParseOptional(t *testing.T) {
	if got := ParseOptional(""); got != nil {
		t.Errorf("ParseOptional(\"\") = %v, want nil", got)
	}
	if got := ParseOptional("not a date"); got != nil {
		t.Errorf("ParseOptional(junk) = %v, want nil", got)
	}
	got := ParseOptional("2024-03-01")
	if got == nil || got.Day() != 1 {
		t.Errorf("ParseOptional(date) = %v", got)
	}
}

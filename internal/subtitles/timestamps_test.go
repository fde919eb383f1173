package subtitles

import (
	"errors"
	"testing"

	"github.com/yehx1/video-translate/internal/services"
)

func TestFormatSRT(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.042, "00:01:01,042"},
		{3661.2, "01:01:01,200"},
		{-5, "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := FormatSRT(tc.in); got != tc.want {
			t.Errorf("FormatSRT(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatASS(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0:00:00.00"},
		{1.5, "0:00:01.50"},
		{3661.25, "1:01:01.25"},
	}
	for _, tc := range cases {
		if got := FormatASS(tc.in); got != tc.want {
			t.Errorf("FormatASS(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"01:30", 90},
		{"01:01:01", 3661},
		{"00:00:01,500", 1.5},
		{" 2 ", 2},
	}
	for _, tc := range cases {
		got, err := ParseSeconds(tc.in)
		if err != nil {
			t.Errorf("ParseSeconds(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSeconds(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseSecondsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "a:b", "1:2:3:4", "-5"} {
		if _, err := ParseSeconds(in); !errors.Is(err, services.ErrValidation) {
			t.Errorf("ParseSeconds(%q) err = %v, want ErrValidation", in, err)
		}
	}
}

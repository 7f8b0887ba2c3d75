package bot

import (
	"reflect"
	"testing"
)

func TestParseWeekdays(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"1,3,5", []int{1, 3, 5}},
		{"mon,wed,fri", []int{1, 3, 5}},
		{"Friday, Monday", []int{1, 5}},
		{"sun", []int{7}},
		{"7, 7, 1", []int{1, 7, 7}},
	}
	for _, tc := range cases {
		got, err := parseWeekdays(tc.in)
		if err != nil {
			t.Errorf("parseWeekdays(%q): %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseWeekdays(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseWeekdaysInvalid(t *testing.T) {
	for _, in := range []string{"", "0", "8", "funday", "1,x"} {
		if _, err := parseWeekdays(in); err == nil {
			t.Errorf("parseWeekdays(%q): expected error", in)
		}
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := parseClock("07:30")
	if err != nil || h != 7 || m != 30 {
		t.Errorf("parseClock(07:30) = %d:%d, %v", h, m, err)
	}
	for _, in := range []string{"", "7", "24:00", "12:60", "a:b"} {
		if _, _, err := parseClock(in); err == nil {
			t.Errorf("parseClock(%q): expected error", in)
		}
	}
}

func TestWeekdayNames(t *testing.T) {
	if got := weekdayNames([]int{1, 3, 5}); got != "Mon, Wed, Fri" {
		t.Errorf("weekdayNames = %q", got)
	}
	if got := weekdayNames([]int{7}); got != "Sun" {
		t.Errorf("weekdayNames = %q", got)
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("Dentist", 18); got != "Dentist" {
		t.Errorf("shortTitle short = %q", got)
	}
	if got := shortTitle("A very long event title indeed", 10); got != "A very lo…" {
		t.Errorf("shortTitle long = %q", got)
	}
	if got := shortTitle("multi\nline", 18); got != "multi line" {
		t.Errorf("shortTitle newline = %q", got)
	}
}

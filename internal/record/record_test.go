package record

import (
	"testing"
	"time"
)

func TestParseInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want *int64
	}{
		{"plain", "42", i64(42)},
		{"negative", "-7", i64(-7)},
		{"padded", "  3 ", i64(3)},
		{"float_rendered", "3.0", i64(3)},
		{"blank", "", nil},
		{"whitespace", "   ", nil},
		{"fractional", "3.5", nil},
		{"garbage", "abc", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseInt(tc.in)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("ParseInt(%q) = %v, want %v", tc.in, got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("ParseInt(%q) = %d, want %d", tc.in, *got, *tc.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"iso", "2025-06-15", "2025-06-15"},
		{"datetime", "2025-06-15 10:30:00", "2025-06-15"},
		{"rfc3339", "2025-06-15T10:30:00Z", "2025-06-15"},
		{"us_slash", "06/15/2025", "2025-06-15"},
		{"blank", "", ""},
		{"garbage", "yesterday", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseDate(tc.in)
			if tc.want == "" {
				if got != nil {
					t.Fatalf("ParseDate(%q) = %v, want nil", tc.in, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseDate(%q) = nil, want %s", tc.in, tc.want)
			}
			if ISODate(*got) != tc.want {
				t.Fatalf("ParseDate(%q) = %s, want %s", tc.in, ISODate(*got), tc.want)
			}
			if h, m, s := got.Clock(); h+m+s != 0 {
				t.Fatalf("ParseDate(%q) not truncated to midnight: %v", tc.in, got)
			}
		})
	}
}

func TestTextEqualTreatsNilAndBlankAsSame(t *testing.T) {
	t.Parallel()

	blank := "   "
	val := "Midtown"
	padded := " Midtown "

	if !TextEqual(nil, &blank) {
		t.Error("nil vs blank should be equal")
	}
	if !TextEqual(&val, &padded) {
		t.Error("trim should apply before comparison")
	}
	if TextEqual(&val, nil) {
		t.Error("value vs nil should differ")
	}
}

func TestFloatEqual(t *testing.T) {
	t.Parallel()

	a := 40.712800
	b := a + 1e-12
	c := a + 1e-6

	if !FloatEqual(&a, &b) {
		t.Error("values within tolerance should be equal")
	}
	if FloatEqual(&a, &c) {
		t.Error("values beyond tolerance should differ")
	}
	if !FloatEqual(nil, nil) {
		t.Error("both nil should be equal")
	}
	if FloatEqual(&a, nil) {
		t.Error("one nil should differ")
	}
}

func TestScanString(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{int64(42), "42"},
		{float64(1.5), "1.5"},
		{day, "2025-06-15"},
	}

	for _, tc := range cases {
		if got := ScanString(tc.in); got != tc.want {
			t.Errorf("ScanString(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func i64(v int64) *int64 { return &v }

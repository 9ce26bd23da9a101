package util

import "testing"

func TestParseIndexValue(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "plain", input: "100.2", want: "100.2", ok: true},
		{name: "padded", input: " 99.5 ", want: "99.5", ok: true},
		{name: "trailing zero kept", input: "100.0", want: "100.0", ok: true},
		{name: "full width digits", input: "１０１．３", want: "101.3", ok: true},
		{name: "decimal comma", input: "98,7", want: "98.7", ok: true},
		{name: "blank", input: "", ok: false},
		{name: "nan", input: "nan", ok: false},
		{name: "dash", input: "-", ok: false},
		{name: "text", input: "城市", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseIndexValue(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestIsNumeric(t *testing.T) {
	if !IsNumeric("100.1") || !IsNumeric(" 99 ") {
		t.Fatal("expected numeric")
	}
	if IsNumeric("abc") || IsNumeric("") {
		t.Fatal("expected non-numeric")
	}
}

func TestLimitJoin(t *testing.T) {
	if got := LimitJoin([]string{"a", "b"}, 8); got != "a, b" {
		t.Fatalf("got %q", got)
	}
	if got := LimitJoin([]string{"a", "b", "c"}, 2); got != "a, b ... 共3项" {
		t.Fatalf("got %q", got)
	}
	if got := LimitJoin(nil, 2); got != "" {
		t.Fatalf("got %q", got)
	}
}

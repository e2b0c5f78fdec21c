package semver

import "testing"

func TestSatisfiesEquality(t *testing.T) {
	cases := []struct {
		version, req string
		want         bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.0.5", ">=1.0.0", true},
		{"2.0.0", "~>1.0", false},
		{"1.0.0-beta", "1.0.0", false},
	}
	for _, c := range cases {
		got, err := Satisfies(c.version, c.req)
		if err != nil {
			t.Fatalf("Satisfies(%q, %q) error: %v", c.version, c.req, err)
		}
		if got != c.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", c.version, c.req, got, c.want)
		}
	}
}

func TestTildeArrow(t *testing.T) {
	cases := []struct {
		version, req string
		want         bool
	}{
		{"1.0.0", "~>1.0.0", true},
		{"1.0.5", "~>1.0.0", true},
		{"1.1.0", "~>1.0.0", false},
		{"2.0.0", "~>1.0.0", false},
		{"1.0.0", "~>1.0", true},
		{"1.5.3", "~>1.0", true},
		{"2.0.0", "~>1.0", false},
	}
	for _, c := range cases {
		got, err := Satisfies(c.version, c.req)
		if err != nil {
			t.Fatalf("Satisfies(%q, %q) error: %v", c.version, c.req, err)
		}
		if got != c.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", c.version, c.req, got, c.want)
		}
	}
}

func TestParseToStringIdentity(t *testing.T) {
	inputs := []string{"1.2.3", "0.0.1", "10.20.30", "1.0.0-beta"}
	for _, s := range inputs {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", s, err)
		}
		if v.Original() != s {
			t.Errorf("Original() = %q, want %q", v.Original(), s)
		}
	}
}

func TestInvalidVersion(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Fatal("expected error for invalid version")
	}
}

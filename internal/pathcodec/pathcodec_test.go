package pathcodec

import (
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	cases := map[string]string{
		"/Users/name/Projects/foo": "-Users-name-Projects-foo",
		"/":                        "-",
		"/tmp":                     "-tmp",
	}
	for in, want := range cases {
		if got := Encode(in); got != want {
			t.Errorf("Encode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	cases := map[string]string{
		"-Users-name-Projects-foo": "/Users/name/Projects/foo",
		"Users-name":               "/Users/name",
		"-":                        "/",
		"":                         "",
	}
	for in, want := range cases {
		if got := Decode(in); got != want {
			t.Errorf("Decode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	paths := []string{
		"/",
		"/a",
		"/Users/test/myproject",
		"/home/dev/src/github.com/acme/api_server",
		"/var/lib/x.y.z/with spaces/ünïcödé",
		"/a//b",
	}
	for _, p := range paths {
		if Ambiguous(p) {
			t.Fatalf("fixture %q should not be ambiguous", p)
		}
		if got := Decode(Encode(p)); got != p {
			t.Errorf("Decode(Encode(%q)) = %q", p, got)
		}
	}
}

func TestAmbiguousPathsAreDetected(t *testing.T) {
	p := "/srv/my-app"
	if !Ambiguous(p) {
		t.Fatalf("expected %q to be ambiguous", p)
	}
	if got := Decode(Encode(p)); got == p {
		t.Fatalf("ambiguous path unexpectedly round-tripped: %q", got)
	}
	if err := Validate(p); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("Validate(%q) = %v, want ErrAmbiguous", p, err)
	}
}

func TestValidateRelative(t *testing.T) {
	if err := Validate("relative/path"); !errors.Is(err, ErrNotAbsolute) {
		t.Fatalf("Validate relative = %v, want ErrNotAbsolute", err)
	}
	if err := Validate("/fine/path"); err != nil {
		t.Fatalf("Validate absolute = %v, want nil", err)
	}
}

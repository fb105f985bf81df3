package filter

import "testing"

func TestRedactLinksMasksCapturedGroups(t *testing.T) {
	got := RedactLinks("check https://example.com/page now")
	want := "check ****s://example****/page now"
	if got != want {
		t.Fatalf("RedactLinks = %q, want %q", got, want)
	}
}

func TestRedactLinksBareDomain(t *testing.T) {
	got := RedactLinks("visit example.com please")
	want := "visit example**** please"
	if got != want {
		t.Fatalf("RedactLinks = %q, want %q", got, want)
	}
}

func TestRedactLinksSubdomain(t *testing.T) {
	got := RedactLinks("see http://sub.example.org/x")
	want := "see ****://sub.example****/x"
	if got != want {
		t.Fatalf("RedactLinks = %q, want %q", got, want)
	}
}

func TestRedactLinksEndOfString(t *testing.T) {
	got := RedactLinks("ping example.net")
	want := "ping example****"
	if got != want {
		t.Fatalf("RedactLinks = %q, want %q", got, want)
	}
}

func TestRedactLinksMultipleURLs(t *testing.T) {
	got := RedactLinks("a.com and b.org here")
	want := "a**** and b**** here"
	if got != want {
		t.Fatalf("RedactLinks = %q, want %q", got, want)
	}
}

func TestRedactLinksNoURL(t *testing.T) {
	input := "just a plain sentence"
	if got := RedactLinks(input); got != input {
		t.Fatalf("RedactLinks = %q, want unchanged %q", got, input)
	}
}

func TestRedactLinksIdempotent(t *testing.T) {
	once := RedactLinks("check https://example.com/page now")
	twice := RedactLinks(once)
	if twice != once {
		t.Fatalf("second pass changed output: %q -> %q", once, twice)
	}
}

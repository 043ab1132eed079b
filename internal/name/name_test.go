package name

import "testing"

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com.", "example.com."},
		{"Example.COM.", "example.com."},
		{".", "."},
		{"", "."},
	}
	for _, tt := range tests {
		n, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		if got := n.String(); got != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRejectsEmptyLabel(t *testing.T) {
	if _, err := Parse("foo..bar."); err == nil {
		t.Fatal("Parse with empty label did not error")
	}
}

func TestParseRejectsOverlongLabel(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Parse(string(long) + ".com."); err == nil {
		t.Fatal("Parse with 64-octet label did not error")
	}
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	a, _ := Parse("Host.Example.COM.")
	b, _ := Parse("host.example.com.")
	if !a.Equal(b) {
		t.Fatal("expected case-insensitive equality")
	}
}

func TestIsSubdomainOf(t *testing.T) {
	child, _ := Parse("a.example.com.")
	parent, _ := Parse("example.com.")
	other, _ := Parse("example.net.")

	if !child.IsSubdomainOf(parent) {
		t.Error("expected a.example.com. to be subdomain of example.com.")
	}
	if !parent.IsSubdomainOf(parent) {
		t.Error("expected a name to be a subdomain of itself")
	}
	if child.IsSubdomainOf(other) {
		t.Error("did not expect a.example.com. to be subdomain of example.net.")
	}
}

func TestIsWildcard(t *testing.T) {
	w, _ := Parse("*.example.com.")
	if !w.IsWildcard() {
		t.Error("expected leftmost label '*' to be detected as wildcard")
	}
	nw, _ := Parse("www.example.com.")
	if nw.IsWildcard() {
		t.Error("did not expect www.example.com. to be a wildcard")
	}
}

func TestLessOrdersByRootFirst(t *testing.T) {
	a, _ := Parse("a.example.com.")
	b, _ := Parse("b.example.com.")
	zzz, _ := Parse("zzz.example.net.")

	if !a.Less(b) {
		t.Error("expected a.example.com. < b.example.com.")
	}
	// siblings under .com sort before anything under .net regardless of
	// their leftmost label, because ordering compares from the root.
	if !b.Less(zzz) {
		t.Error("expected b.example.com. < zzz.example.net. (root-first ordering)")
	}
}

func TestParent(t *testing.T) {
	n, _ := Parse("a.example.com.")
	p, ok := n.Parent()
	if !ok {
		t.Fatal("expected Parent to succeed")
	}
	if want, _ := Parse("example.com."); !p.Equal(want) {
		t.Errorf("Parent() = %v, want example.com.", p)
	}
	if _, ok := Root.Parent(); ok {
		t.Error("expected Root.Parent() to fail")
	}
}

func TestParseRelative(t *testing.T) {
	origin, _ := Parse("example.com.")
	n, err := ParseRelative("www", origin)
	if err != nil {
		t.Fatalf("ParseRelative error: %v", err)
	}
	want, _ := Parse("www.example.com.")
	if !n.Equal(want) {
		t.Errorf("ParseRelative(www, example.com.) = %v, want %v", n, want)
	}

	// an absolute name ignores the origin
	abs, err := ParseRelative("other.net.", origin)
	if err != nil {
		t.Fatalf("ParseRelative error: %v", err)
	}
	wantAbs, _ := Parse("other.net.")
	if !abs.Equal(wantAbs) {
		t.Errorf("ParseRelative(other.net., example.com.) = %v, want %v", abs, wantAbs)
	}
}

func TestNumLabelsSharedSuffixWith(t *testing.T) {
	a, _ := Parse("www.sub.example.com.")
	b, _ := Parse("example.com.")
	c, _ := Parse("sub.example.com.")

	if got := a.NumLabelsSharedSuffixWith(b); got != 2 {
		t.Errorf("shared suffix with example.com. = %d, want 2", got)
	}
	if got := a.NumLabelsSharedSuffixWith(c); got != 3 {
		t.Errorf("shared suffix with sub.example.com. = %d, want 3", got)
	}
}

package vars

import "testing"

func TestGetFallsThroughToParent(t *testing.T) {
	parent := NewScope(nil)
	parent.Set("FOO", "bar")
	child := NewScope(parent)

	v, ok := child.Get("FOO")
	if !ok || v != "bar" {
		t.Fatalf("Get(FOO) = (%q, %v), want (bar, true)", v, ok)
	}
}

func TestSetShadowsParent(t *testing.T) {
	parent := NewScope(nil)
	parent.Set("FOO", "outer")
	child := NewScope(parent)
	child.Set("FOO", "inner")

	if v, _ := child.Get("FOO"); v != "inner" {
		t.Fatalf("child Get(FOO) = %q, want inner", v)
	}
	if v, _ := parent.Get("FOO"); v != "outer" {
		t.Fatalf("parent Get(FOO) = %q, want outer (child set must not leak up)", v)
	}
}

func TestSetLocalIfUnsetOnlyAppliesOnce(t *testing.T) {
	s := NewScope(nil)
	s.SetLocalIfUnset("FOO", "first")
	s.SetLocalIfUnset("FOO", "second")
	if v, _ := s.Get("FOO"); v != "first" {
		t.Fatalf("Get(FOO) = %q, want first (?= must not override)", v)
	}
}

func TestAppendCreatesThenJoinsWithSpace(t *testing.T) {
	s := NewScope(nil)
	s.Append("FOO", "a")
	s.Append("FOO", "b")
	if v, _ := s.Get("FOO"); v != "a b" {
		t.Fatalf("Get(FOO) = %q, want %q", v, "a b")
	}
}

func TestSubstExpandsBracedAndBareNames(t *testing.T) {
	s := NewScope(nil)
	s.Set("X", "1")
	s.Set("LONGNAME", "2")

	cases := map[string]string{
		"$X":          "1",
		"${LONGNAME}": "2",
		"$(LONGNAME)": "2",
		"a$Xb":        "a1b",
		"$$":          "$",
	}
	for in, want := range cases {
		if got := s.Subst(in); got != want {
			t.Fatalf("Subst(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSubstLeavesUndefinedVariableLiteral(t *testing.T) {
	s := NewScope(nil)
	in := "${UNSET}"
	if got := s.Subst(in); got != in {
		t.Fatalf("Subst(%q) = %q, want unchanged literal (needed for self-referential :=)", in, got)
	}
}

func TestMakeFlagsRoundTripsActiveOptions(t *testing.T) {
	flags := MakeFlags(Options{KeepGoing: true, DryRun: true, Debug: []string{"parse", "arch"}})
	want := "-k -n -dparse,arch"
	if flags != want {
		t.Fatalf("MakeFlags = %q, want %q", flags, want)
	}
}

func TestMakeFlagsEmptyWhenNoOptionsSet(t *testing.T) {
	if got := MakeFlags(Options{}); got != "" {
		t.Fatalf("MakeFlags(Options{}) = %q, want empty", got)
	}
}

func TestFromEnvironPopulatesScope(t *testing.T) {
	t.Setenv("BMAKE_TEST_VAR", "hello")
	s := FromEnviron()
	if v, ok := s.Get("BMAKE_TEST_VAR"); !ok || v != "hello" {
		t.Fatalf("Get(BMAKE_TEST_VAR) = (%q, %v), want (hello, true)", v, ok)
	}
}

package values

import "testing"

func TestFastPathCallTarget(t *testing.T) {
	cases := []struct {
		code   string
		name   string
		wantOK bool
	}{
		{"f()", "f", true},
		{"  f()  ", "f", true},
		{"f( )", "", false}, // must be exactly "()", no inner whitespace
		{"a.b()", "a.b", true},
		{"1+2", "", false},
		{"()", "", false},
		{"f(1)", "", false},
		{"f()\n", "f", true},
	}
	for _, c := range cases {
		name, ok := FastPathCallTarget(c.code)
		if ok != c.wantOK || (ok && name != c.name) {
			t.Errorf("FastPathCallTarget(%q) = %q, %v; want %q, %v", c.code, name, ok, c.name, c.wantOK)
		}
	}
}

type fakeDeferrer struct {
	ran []func()
}

func (d *fakeDeferrer) Defer(fn func()) {
	d.ran = append(d.ran, fn)
}

func TestFactoryAllocLookupFree(t *testing.T) {
	d := &fakeDeferrer{}
	f := NewFactory(d)

	v := NewString("abc")
	h := f.Alloc(v)

	got, exc := f.Lookup(h, "test")
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc.Str)
	}
	if got.Str != "abc" {
		t.Fatalf("got.Str = %q, want %q", got.Str, "abc")
	}

	f.Free(h)
	if _, exc := f.Lookup(h, "test"); exc == nil {
		t.Fatal("expected value_exception after Free")
	} else if exc.Kind != KindValueException {
		t.Fatalf("Kind = %v, want KindValueException", exc.Kind)
	}
}

func TestFactoryLookupUnknownHandle(t *testing.T) {
	f := NewFactory(nil)
	_, exc := f.Lookup(Handle(123456), "get")
	if exc == nil || exc.Kind != KindValueException {
		t.Fatal("expected value_exception for unknown handle")
	}
}

package jscallback

import "testing"

func TestRegisterInvokeUnregister(t *testing.T) {
	id := Register(func(args Args) (any, error) {
		return len(args), nil
	})
	defer Unregister(id)

	result, err, ok := Invoke(id, Args{1, 2, 3})
	if !ok {
		t.Fatal("Invoke reported ok=false for a registered callback")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 3 {
		t.Fatalf("result = %v, want 3", result)
	}
}

func TestInvokeUnknownIDIsNotOK(t *testing.T) {
	_, _, ok := Invoke(CallerID(987654321), nil)
	if ok {
		t.Fatal("Invoke reported ok=true for an unregistered id")
	}
}

func TestUnregisterIsIdempotentAndInvalidatesInvoke(t *testing.T) {
	id := Register(func(Args) (any, error) { return nil, nil })
	Unregister(id)
	Unregister(id) // must not panic

	if _, _, ok := Invoke(id, nil); ok {
		t.Fatal("Invoke succeeded after Unregister")
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	seen := make(map[CallerID]bool)
	for i := 0; i < 50; i++ {
		id := Register(func(Args) (any, error) { return nil, nil })
		if seen[id] {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
		Unregister(id)
	}
}

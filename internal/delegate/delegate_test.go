package delegate

import "testing"

func TestDelegate_FireOrder(t *testing.T) {
	d := New[int]()
	var got []int
	d.Subscribe(func(v int) { got = append(got, v*10) })
	d.Subscribe(func(v int) { got = append(got, v*100) })

	d.Fire(2)
	if len(got) != 2 || got[0] != 20 || got[1] != 200 {
		t.Fatalf("delivery = %v; want [20 200] in insertion order", got)
	}
}

func TestDelegate_SingleShot(t *testing.T) {
	t.Run("removed_after_first_fire", func(t *testing.T) {
		d := New[int]()
		calls := 0
		d.SubscribeOnce(func(int) { calls++ })

		d.Fire(1)
		d.Fire(2)
		if calls != 1 {
			t.Fatalf("single-shot calls = %d; want 1", calls)
		}
		if d.HasListeners() {
			t.Fatalf("single-shot listener still registered")
		}
	})

	t.Run("no_double_delivery_on_reentrant_fire", func(t *testing.T) {
		d := New[int]()
		calls := 0
		d.Subscribe(func(v int) {
			if v == 1 {
				d.Fire(2)
			}
		})
		d.SubscribeOnce(func(int) { calls++ })

		d.Fire(1)
		// the re-entrant fire runs before the outer snapshot reaches the
		// single-shot listener; removal before dispatch keeps it at one
		if calls != 1 {
			t.Fatalf("single-shot calls = %d; want exactly 1", calls)
		}
	})
}

func TestDelegate_UnsubscribeAll(t *testing.T) {
	d := New[string]()
	type owner struct{ name string }
	a := &owner{"a"}
	b := &owner{"b"}

	var got []string
	d.SubscribeLinked(func(v string) { got = append(got, "a1:"+v) }, a)
	d.SubscribeLinked(func(v string) { got = append(got, "b1:"+v) }, b)
	d.SubscribeLinked(func(v string) { got = append(got, "a2:"+v) }, a)

	d.UnsubscribeAll(a)
	d.Fire("x")

	if len(got) != 1 || got[0] != "b1:x" {
		t.Fatalf("delivery = %v; want only b's listener", got)
	}
}

func TestDelegate_ReentrantSubscribeAffectsFutureFiresOnly(t *testing.T) {
	d := New[int]()
	nested := 0
	d.Subscribe(func(v int) {
		if v == 1 {
			d.Subscribe(func(int) { nested++ })
		}
	})

	d.Fire(1)
	if nested != 0 {
		t.Fatalf("listener added during fire ran in the same fire")
	}
	d.Fire(2)
	if nested != 1 {
		t.Fatalf("listener added during fire did not run on the next fire, calls=%d", nested)
	}
}

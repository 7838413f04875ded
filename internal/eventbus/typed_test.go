package eventbus

import "testing"

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(1)
}

func TestTypedBusCountsDrops(t *testing.T) {
	bus := NewTypedBuffered[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	if got := bus.Dropped(); got != 1 {
		t.Fatalf("expected 1 drop got %d", got)
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event, got %d", v)
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestListenersNotifyInOrder(t *testing.T) {
	var l Listeners[int]
	var got []int
	l.Add(func(v int) { got = append(got, v) })
	l.Add(nil)
	l.Add(func(v int) { got = append(got, v*10) })
	l.Notify(3)
	if l.Len() != 2 {
		t.Fatalf("expected 2 listeners got %d", l.Len())
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 30 {
		t.Fatalf("unexpected notifications %v", got)
	}
}

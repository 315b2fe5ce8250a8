package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaptureStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e CaptureStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(CaptureStateChangedEvent{On: true, Timestamp: "2025-01-27T10:30:00Z"})

	select {
	case got := <-received:
		if !got.On || got.Timestamp == "" {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan BrokerConnectionEvent, 1)
	received2 := make(chan BrokerConnectionEvent, 1)

	unsub1 := bus.Subscribe(func(e BrokerConnectionEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e BrokerConnectionEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(BrokerConnectionEvent{State: "connected", Attempt: 1})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaptureFailedEvent, 1)

	unsub := bus.Subscribe(func(e CaptureFailedEvent) {
		received <- e
	})

	bus.Publish(CaptureFailedEvent{Operation: "start"})
	<-received

	unsub()

	bus.Publish(CaptureFailedEvent{Operation: "stop"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := New()
	published := make(chan StatePublishedEvent, 1)
	changed := make(chan CaptureStateChangedEvent, 1)

	defer bus.Subscribe(func(e StatePublishedEvent) { published <- e })()
	defer bus.Subscribe(func(e CaptureStateChangedEvent) { changed <- e })()

	bus.Publish(StatePublishedEvent{On: true, Reason: "heartbeat"})

	<-published
	select {
	case e := <-changed:
		t.Fatalf("state change handler received %+v", e)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_NilSafe(_ *testing.T) {
	var bus *Bus
	bus.Publish(CaptureStateChangedEvent{On: true})
	bus.Subscribe(func(CaptureStateChangedEvent) {})()
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := New()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	unsub := bus.Subscribe(func(StatePublishedEvent) { wg.Done() })
	defer unsub()

	for i := 0; i < n; i++ {
		go bus.Publish(StatePublishedEvent{Reason: "change"})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all events delivered")
	}
}

func TestBus_DeviceChanged(t *testing.T) {
	bus := New()
	received := make(chan DeviceChangedEvent, 1)
	defer bus.Subscribe(func(e DeviceChangedEvent) { received <- e })()

	bus.Publish(DeviceChangedEvent{Device: "/dev/video0", Present: false})

	select {
	case e := <-received:
		if e.Device != "/dev/video0" || e.Present {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("device event not delivered")
	}
}

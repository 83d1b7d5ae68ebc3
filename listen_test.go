package messenger

import (
	"context"
	"testing"
	"time"
)

func TestListen_DeliversLiveMessages(t *testing.T) {
	alice, bob, _ := twoParties(t)

	received := make(chan Message, 4)
	unsubscribe, err := bob.Listen(context.Background(), func(msg Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer unsubscribe()

	if _, err := alice.Send(context.Background(), bob.identity, "live hello", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Text != "live hello" {
			t.Errorf("Text = %q, want %q", msg.Text, "live hello")
		}
		if msg.Sender != alice.identity {
			t.Error("Sender does not match alice's identity")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live delivery")
	}
}

func TestListen_UnsubscribeStopsFurtherCallbacks(t *testing.T) {
	alice, bob, _ := twoParties(t)

	var delivered int
	unsubscribe, err := bob.Listen(context.Background(), func(msg Message) {
		delivered++
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if _, err := alice.Send(context.Background(), bob.identity, "before unsubscribe", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Give the background loop a moment to process the first message
	// before tearing the subscription down.
	time.Sleep(50 * time.Millisecond)

	unsubscribe()

	if _, err := alice.Send(context.Background(), bob.identity, "after unsubscribe", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if delivered != 1 {
		t.Errorf("delivered = %d, want exactly 1 (only the message sent before unsubscribe)", delivered)
	}
}

func TestListen_ChunkedMessageReassemblesLive(t *testing.T) {
	alice, bob, _ := twoParties(t)

	received := make(chan Message, 1)
	unsubscribe, err := bob.Listen(context.Background(), func(msg Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer unsubscribe()

	longText := ""
	for i := 0; i < 2000; i++ {
		longText += "a"
	}

	if _, err := alice.Send(context.Background(), bob.identity, longText, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Text != longText {
			t.Error("reassembled live message text does not match the original")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunked live delivery")
	}
}

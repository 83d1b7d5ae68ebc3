package messenger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func twoParties(t *testing.T) (alice, bob *Messenger, chain *fakeChain) {
	t.Helper()
	chain = newFakeChain(testProgramID())
	alice = newTestMessenger(t, newTestIdentity(t), chain)
	bob = newTestMessenger(t, newTestIdentity(t), chain)

	if _, _, err := alice.Init(context.Background()); err != nil {
		t.Fatalf("alice.Init: %v", err)
	}
	if _, _, err := bob.Init(context.Background()); err != nil {
		t.Fatalf("bob.Init: %v", err)
	}
	return alice, bob, chain
}

func TestSend_StandaloneMessageRoundTrips(t *testing.T) {
	alice, bob, _ := twoParties(t)

	sigs, err := alice.Send(context.Background(), bob.identity, "hello bob", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signature for a standalone message, got %d", len(sigs))
	}

	msgs, err := bob.Read(context.Background(), ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(msgs))
	}
	if msgs[0].Text != "hello bob" {
		t.Errorf("Text = %q, want %q", msgs[0].Text, "hello bob")
	}
	if msgs[0].Sender != alice.identity {
		t.Error("Sender does not match alice's identity")
	}
}

func TestSend_ChunkedMessageReassembles(t *testing.T) {
	alice, bob, _ := twoParties(t)

	longText := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40) // > 1500 bytes
	sigs, err := alice.Send(context.Background(), bob.identity, longText, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sigs) < 2 {
		t.Fatalf("expected multiple chunks for a long message, got %d", len(sigs))
	}

	msgs, err := bob.Read(context.Background(), ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one reassembled message, got %d", len(msgs))
	}
	if msgs[0].Text != longText {
		t.Error("reassembled text does not match the original")
	}
	if len(msgs[0].Signatures) != len(sigs) {
		t.Errorf("Signatures len = %d, want %d", len(msgs[0].Signatures), len(sigs))
	}
}

func TestSend_ToUnregisteredRecipientUsesIdentityKey(t *testing.T) {
	chain := newFakeChain(testProgramID())
	alice := newTestMessenger(t, newTestIdentity(t), chain)
	if _, _, err := alice.Init(context.Background()); err != nil {
		t.Fatalf("alice.Init: %v", err)
	}

	bobSecret := newTestIdentity(t)
	bob := newTestMessenger(t, bobSecret, chain)
	// Bob never calls Init/Register: no registry entry exists for him.

	if _, err := alice.Send(context.Background(), bob.identity, "hi", nil); err != nil {
		t.Fatalf("Send to unregistered recipient: %v", err)
	}

	// Bob can still decrypt: the Read path falls back to the identity
	// secret when the encryption secret doesn't open the ciphertext.
	if _, _, err := bob.Init(context.Background()); err != nil {
		t.Fatalf("bob.Init: %v", err)
	}
	msgs, err := bob.Read(context.Background(), ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hi" {
		t.Fatalf("expected bob to decrypt the message via his identity key, got %+v", msgs)
	}
}

type failAfterNChain struct {
	*fakeChain
	remaining int
}

func (f *failAfterNChain) SendTransaction(ctx context.Context, signedTx []byte) (string, error) {
	if f.remaining <= 0 {
		return "", errors.New("simulated rpc failure")
	}
	f.remaining--
	return f.fakeChain.SendTransaction(ctx, signedTx)
}

func TestSend_PartialFailureReturnsLandedSignatures(t *testing.T) {
	chain := newFakeChain(testProgramID())
	secret := newTestIdentity(t)
	m, err := New(Options{
		RPCURL:          "http://127.0.0.1:0",
		IdentitySecret:  secret,
		KeysDir:         t.TempDir(),
		ProgramID:       chain.programID,
		MetricsRegistry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	failing := &failAfterNChain{fakeChain: chain, remaining: 1}
	m = m.withGateway(failing)

	var recipient [32]byte
	recipient[0] = 0x55

	longText := strings.Repeat("x", 1500)
	_, err = m.Send(context.Background(), recipient, longText, nil)
	if err == nil {
		t.Fatal("expected a partial failure error")
	}

	var partial *SendPartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *SendPartialFailureError, got %T: %v", err, err)
	}
	if len(partial.Signatures) != 1 {
		t.Errorf("Signatures = %v, want exactly 1 landed chunk", partial.Signatures)
	}
	if !errors.Is(err, ErrSendPartialFailure) {
		t.Error("expected errors.Is to match ErrSendPartialFailure")
	}
}

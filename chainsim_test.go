package messenger

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sabersally/solana-messenger-go/internal/rpcclient"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// fakeChain is an in-memory chain simulator standing in for a live RPC
// provider: it applies the four registry/message instructions exactly the
// way the deployed program would, keeps submitted transactions and their
// logs in submission order, and fans out send_message events to any
// active log subscriptions. It implements the gateway interface.
type fakeChain struct {
	mu        sync.Mutex
	programID [32]byte
	accounts  map[string][]byte
	txs       []fakeTx
	subs      []*fakeSubscription
}

type fakeTx struct {
	signature string
	logs      []string
	blockTime int64
}

func newFakeChain(programID [32]byte) *fakeChain {
	return &fakeChain{programID: programID, accounts: make(map[string][]byte)}
}

func (g *fakeChain) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	var bh [32]byte
	bh[0] = 0x01
	return bh, nil
}

func (g *fakeChain) SendTransaction(ctx context.Context, signedTx []byte) (string, error) {
	feePayer, instructions, err := parseSignedTx(signedTx)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().Unix()
	sig := fmt.Sprintf("%x", sha256.Sum256(signedTx))[:44]

	var logs []string
	for _, ix := range instructions {
		if [32]byte(ix.ProgramID) != g.programID {
			continue
		}
		if len(ix.Data) < wire.DiscriminatorSize {
			continue
		}
		var disc wire.Discriminator
		copy(disc[:], ix.Data[:wire.DiscriminatorSize])

		switch disc {
		case wire.DiscRegister:
			registryPDA := ix.Accounts[0].PublicKey
			var encKey [32]byte
			copy(encKey[:], ix.Data[wire.DiscriminatorSize:])
			g.accounts[FormatIdentity([32]byte(registryPDA))] = encodeRegistryAccount(feePayer, encKey, now, now)

		case wire.DiscUpdateEncryptionKey:
			registryPDA := ix.Accounts[0].PublicKey
			var encKey [32]byte
			copy(encKey[:], ix.Data[wire.DiscriminatorSize:])
			existing := g.accounts[FormatIdentity([32]byte(registryPDA))]
			createdAt := now
			if acc, err := wire.DecodeRegistryAccount(existing); err == nil {
				createdAt = acc.CreatedAt
			}
			g.accounts[FormatIdentity([32]byte(registryPDA))] = encodeRegistryAccount(feePayer, encKey, createdAt, now)

		case wire.DiscDeregister:
			registryPDA := ix.Accounts[0].PublicKey
			delete(g.accounts, FormatIdentity([32]byte(registryPDA)))

		case wire.DiscSendMessage:
			var recipient [32]byte
			off := wire.DiscriminatorSize
			copy(recipient[:], ix.Data[off:off+32])
			off += 32
			ctLen := int(binary.LittleEndian.Uint32(ix.Data[off : off+4]))
			off += 4
			ciphertext := ix.Data[off : off+ctLen]
			off += ctLen
			nonce := ix.Data[off : off+24]

			logs = append(logs, encodeMessageSentLog(feePayer, recipient, ciphertext, nonce, now))
		}
	}

	g.txs = append(g.txs, fakeTx{signature: sig, logs: logs, blockTime: now})

	if len(logs) > 0 {
		notif := rpcclient.LogsNotification{Signature: sig, Logs: logs}
		for _, sub := range g.subs {
			sub.deliver(notif)
		}
	}

	return sig, nil
}

func (g *fakeChain) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*rpcclient.SignatureStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*rpcclient.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		for _, tx := range g.txs {
			if tx.signature == sig {
				out[i] = &rpcclient.SignatureStatus{ConfirmationStatus: "confirmed"}
				break
			}
		}
	}
	return out, nil
}

func (g *fakeChain) GetSignaturesForAddress(ctx context.Context, address, before string, limit int) ([]rpcclient.SignatureInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if address != FormatIdentity(g.programID) {
		return nil, nil
	}

	// Walk newest-first, honoring the before cursor.
	start := len(g.txs) - 1
	if before != "" {
		for i := len(g.txs) - 1; i >= 0; i-- {
			if g.txs[i].signature == before {
				start = i - 1
				break
			}
		}
	}

	var out []rpcclient.SignatureInfo
	for i := start; i >= 0 && len(out) < limit; i-- {
		bt := g.txs[i].blockTime
		out = append(out, rpcclient.SignatureInfo{Signature: g.txs[i].signature, BlockTime: &bt})
	}
	return out, nil
}

func (g *fakeChain) GetTransaction(ctx context.Context, signature string) (*rpcclient.TransactionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, tx := range g.txs {
		if tx.signature == signature {
			bt := tx.blockTime
			return &rpcclient.TransactionInfo{
				BlockTime: &bt,
				Meta:      &rpcclient.TransactionMeta{LogMessages: tx.logs},
			}, nil
		}
	}
	return nil, nil
}

func (g *fakeChain) GetAccountInfo(ctx context.Context, address string) (*rpcclient.AccountInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, ok := g.accounts[address]
	if !ok {
		return nil, nil
	}
	return &rpcclient.AccountInfo{Data: append([]byte(nil), data...)}, nil
}

func (g *fakeChain) SubscribeLogs(ctx context.Context, programAddress, commitment string) (Subscription, error) {
	sub := &fakeSubscription{ch: make(chan rpcclient.LogsNotification, 64), closed: make(chan struct{})}
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
	return sub, nil
}

type fakeSubscription struct {
	ch       chan rpcclient.LogsNotification
	closed   chan struct{}
	closeOne sync.Once
}

func (s *fakeSubscription) deliver(n rpcclient.LogsNotification) {
	select {
	case s.ch <- n:
	case <-s.closed:
	}
}

func (s *fakeSubscription) Next(ctx context.Context) (rpcclient.LogsNotification, error) {
	select {
	case n := <-s.ch:
		return n, nil
	case <-s.closed:
		return rpcclient.LogsNotification{}, fmt.Errorf("fakeSubscription: closed")
	case <-ctx.Done():
		return rpcclient.LogsNotification{}, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error {
	s.closeOne.Do(func() { close(s.closed) })
	return nil
}

// parseSignedTx splits signature(64) from the CompileMessage-shaped body
// and decodes the body back into instructions, mirroring signer.CompileMessage.
func parseSignedTx(signedTx []byte) (feePayer [32]byte, instructions []wire.Instruction, err error) {
	const sigSize = 64
	if len(signedTx) < sigSize+1+32+32+2 {
		return feePayer, nil, fmt.Errorf("fakeChain: signed tx too short")
	}
	buf := signedTx[sigSize:]
	off := 1 // version byte
	copy(feePayer[:], buf[off:off+32])
	off += 32
	off += 32 // blockhash, unused by the simulator
	numIx := binary.BigEndian.Uint16(buf[off : off+2])
	off += 2

	for i := 0; i < int(numIx); i++ {
		var ix wire.Instruction
		copy(ix.ProgramID[:], buf[off:off+32])
		off += 32

		numAccounts := binary.BigEndian.Uint16(buf[off : off+2])
		off += 2
		for j := 0; j < int(numAccounts); j++ {
			var meta wire.AccountMeta
			copy(meta.PublicKey[:], buf[off:off+32])
			off += 32
			flags := buf[off]
			off++
			meta.IsSigner = flags&0x01 != 0
			meta.IsWritable = flags&0x02 != 0
			ix.Accounts = append(ix.Accounts, meta)
		}

		dataLen := binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		ix.Data = append([]byte(nil), buf[off:off+int(dataLen)]...)
		off += int(dataLen)

		instructions = append(instructions, ix)
	}

	return feePayer, instructions, nil
}

// encodeRegistryAccount produces bytes wire.DecodeRegistryAccount accepts:
// an 8-byte discriminator (content irrelevant to the decoder), owner(32),
// encryption_key(32), created_at(8), updated_at(8), min_fee_lamports(8).
func encodeRegistryAccount(owner, encryptionKey [32]byte, createdAt, updatedAt int64) []byte {
	buf := make([]byte, 0, wire.RegistryAccountFixedSize+24)
	buf = append(buf, make([]byte, wire.DiscriminatorSize)...)
	buf = append(buf, owner[:]...)
	buf = append(buf, encryptionKey[:]...)

	trailer := make([]byte, 24)
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(createdAt))
	binary.LittleEndian.PutUint64(trailer[8:16], uint64(updatedAt))
	binary.LittleEndian.PutUint64(trailer[16:24], 0)
	return append(buf, trailer...)
}

// encodeMessageSentLog builds a "Program data: ..." log line matching
// wire.DecodeEvents' expected shape for a MessageSent event.
func encodeMessageSentLog(sender, recipient [32]byte, ciphertext, nonce []byte, timestamp int64) string {
	raw := make([]byte, 0, wire.DiscriminatorSize+64+4+len(ciphertext)+24+8)
	raw = append(raw, wire.DiscMessageSent[:]...)
	raw = append(raw, sender[:]...)
	raw = append(raw, recipient[:]...)

	ctLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(ctLen, uint32(len(ciphertext)))
	raw = append(raw, ctLen...)
	raw = append(raw, ciphertext...)
	raw = append(raw, nonce...)

	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, uint64(timestamp))
	raw = append(raw, ts...)

	return wire.ProgramDataPrefix + base64.StdEncoding.EncodeToString(raw)
}

package messenger

import (
	"context"

	"github.com/sabersally/solana-messenger-go/internal/rpcclient"
)

// Subscription is a live subscription to program log notifications.
type Subscription interface {
	Next(ctx context.Context) (rpcclient.LogsNotification, error)
	Close() error
}

// gateway is the Messenger's view of the chain RPC provider, narrowed to
// an interface so tests can substitute an in-memory chain simulator
// instead of a live RPC endpoint.
type gateway interface {
	GetLatestBlockhash(ctx context.Context) ([32]byte, error)
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*rpcclient.SignatureStatus, error)
	GetSignaturesForAddress(ctx context.Context, address, before string, limit int) ([]rpcclient.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*rpcclient.TransactionInfo, error)
	GetAccountInfo(ctx context.Context, address string) (*rpcclient.AccountInfo, error)
	SubscribeLogs(ctx context.Context, programAddress, commitment string) (Subscription, error)
}

// liveGateway adapts *rpcclient.Client to the gateway interface. Every
// method but SubscribeLogs is promoted directly by embedding; SubscribeLogs
// needs an adapter since rpcclient.Client returns its own concrete
// *rpcclient.LogSubscription type, which satisfies Subscription structurally.
type liveGateway struct {
	*rpcclient.Client
}

func (g liveGateway) SubscribeLogs(ctx context.Context, programAddress, commitment string) (Subscription, error) {
	return g.Client.SubscribeLogs(ctx, programAddress, commitment)
}

// Package p2p provides gossip relay of shielded transactions and memos.
package p2p

import (
	"context"
	"errors"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/ccoin/core/internal/memo"
	"github.com/ccoin/core/internal/zkp"
)

// Relay errors
var (
	ErrNoPeers     = errors.New("no peers available for relay")
	ErrDuplicateTx = errors.New("transaction already seen")
)

// RelayManager applies gossiped transactions to a ShieldedPool and
// rebroadcasts accepted ones, replacing the teacher's DAG block-sync
// loop with a single-ledger relay appropriate to a pool that has no
// forks to reconcile (spec.md §6, SPEC_FULL.md ambient transport).
type RelayManager struct {
	mu sync.Mutex

	node *Node
	pool *zkp.ShieldedPool
	kind zkp.CircuitKind

	seenNullifiers map[string]time.Time
	seenTTL        time.Duration

	onMemo func(ctx context.Context, env *memo.Envelope)
}

// RelayConfig holds relay configuration.
type RelayConfig struct {
	SeenTTL time.Duration
}

// DefaultRelayConfig returns default relay configuration.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{SeenTTL: 10 * time.Minute}
}

// NewRelayManager constructs a relay manager over node and pool. kind
// must be zkp.CircuitTransfer; the manager verifies every gossiped
// transaction against it before applying it to pool.
func NewRelayManager(node *Node, pool *zkp.ShieldedPool, kind zkp.CircuitKind, cfg *RelayConfig) *RelayManager {
	if cfg == nil {
		cfg = DefaultRelayConfig()
	}
	rm := &RelayManager{
		node:           node,
		pool:           pool,
		kind:           kind,
		seenNullifiers: make(map[string]time.Time),
		seenTTL:        cfg.SeenTTL,
	}
	node.SetTransactionHandler(rm.handleTransactionMessage)
	node.SetMemoHandler(rm.handleMemoMessage)
	return rm
}

// OnMemo registers a callback invoked for every memo envelope received
// over the gossip network, so a wallet can trial-decrypt it.
func (rm *RelayManager) OnMemo(fn func(ctx context.Context, env *memo.Envelope)) {
	rm.onMemo = fn
}

func (rm *RelayManager) handleTransactionMessage(ctx context.Context, msg *pubsub.Message) error {
	dt, err := DecodeTransaction(msg.Data)
	if err != nil {
		return err
	}

	nullifierBytes := dt.Nullifier.Bytes()
	key := string(nullifierBytes[:])
	rm.mu.Lock()
	if _, dup := rm.seenNullifiers[key]; dup {
		rm.mu.Unlock()
		return nil
	}
	rm.seenNullifiers[key] = time.Now()
	rm.mu.Unlock()

	tx := &zkp.ShieldedTransaction{
		Root:          dt.Root,
		Nullifier:     dt.Nullifier,
		OutCommitment: dt.OutCommitment,
		Delta:         dt.Delta,
		Proof:         &zkp.Proof{Kind: rm.kind, Bytes: dt.ProofBytes, PublicInputs: dt.PublicInputs},
	}
	if len(dt.OutLeaves) != len(tx.OutLeaves) {
		return errors.New("p2p: unexpected output leaf count")
	}
	copy(tx.OutLeaves[:], dt.OutLeaves)

	if err := rm.pool.ProcessTransaction(ctx, tx); err != nil {
		return err
	}

	return rm.node.BroadcastTransaction(msg.Data)
}

func (rm *RelayManager) handleMemoMessage(ctx context.Context, msg *pubsub.Message) error {
	env, err := DecodeMemo(msg.Data)
	if err != nil {
		return err
	}
	if rm.onMemo != nil {
		rm.onMemo(ctx, env)
	}
	return rm.node.BroadcastMemo(msg.Data)
}

// SubmitTransaction encodes and gossips a locally built transaction.
func (rm *RelayManager) SubmitTransaction(built *zkp.BuiltTransfer, proof *zkp.Proof) error {
	data := EncodeTransaction(built.Root, built.Nullifier, built.OutCommitment, built.Delta, built.OutLeaves[:], proof.Bytes, proof.PublicInputs)
	return rm.node.BroadcastTransaction(data)
}

// SubmitMemo encodes and gossips a memo envelope alongside its transaction.
func (rm *RelayManager) SubmitMemo(env *memo.Envelope) error {
	return rm.node.BroadcastMemo(EncodeMemo(env))
}

// CleanupStale drops nullifier dedup entries older than the relay's TTL.
func (rm *RelayManager) CleanupStale() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	cutoff := time.Now().Add(-rm.seenTTL)
	for k, t := range rm.seenNullifiers {
		if t.Before(cutoff) {
			delete(rm.seenNullifiers, k)
		}
	}
}

// Package p2p implements the libp2p-based gossip layer the shielded
// pool uses to relay proven transactions and their encrypted memos
// between peers (spec.md §6, SPEC_FULL.md ambient transport).
package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
)

// Protocol IDs and gossip topics. A single network has no separate
// block/task channels to fan out to; transactions and their memos
// each get their own topic so a peer can subscribe to proofs without
// also pulling every memo ciphertext (spec.md §6).
const (
	ProtocolID       = "/ccoin-pool/1.0.0"
	TransactionTopic = "ccoin-pool/transactions"
	MemoTopic        = "ccoin-pool/memos"
)

// Node is a shielded-pool gossip peer.
type Node struct {
	mu sync.RWMutex

	host   host.Host
	pubsub *pubsub.PubSub

	txTopic   *pubsub.Topic
	memoTopic *pubsub.Topic

	txSub   *pubsub.Subscription
	memoSub *pubsub.Subscription

	txHandler   MessageHandler
	memoHandler MessageHandler

	peers    map[peer.ID]*PeerInfo
	maxPeers int

	ctx    context.Context
	cancel context.CancelFunc
}

// PeerInfo holds information about a connected peer.
type PeerInfo struct {
	ID          peer.ID
	Addrs       []string
	ConnectedAt time.Time
	LastSeen    time.Time
}

// MessageHandler processes an incoming pubsub message.
type MessageHandler func(ctx context.Context, msg *pubsub.Message) error

// Config holds P2P node configuration. Peer discovery is local-network
// mDNS plus a static bootstrap list; the pool's peer set is small and
// semi-trusted enough that a DHT crawl buys nothing a relay and a
// handful of known peers don't already give (SPEC_FULL.md).
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
	MaxPeers       int
	EnableMDNS     bool
}

// DefaultConfig returns default P2P configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9000"},
		MaxPeers:    50,
		EnableMDNS:  true,
	}
}

// NewNode creates a new P2P node.
func NewNode(ctx context.Context, cfg *Config) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	node := &Node{
		host:     h,
		pubsub:   ps,
		peers:    make(map[peer.ID]*PeerInfo),
		maxPeers: cfg.MaxPeers,
		ctx:      nodeCtx,
		cancel:   cancel,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    node.onPeerConnected,
		DisconnectedF: node.onPeerDisconnected,
	})

	for _, peerAddr := range cfg.BootstrapPeers {
		if err := node.connectToPeer(peerAddr); err != nil {
			fmt.Printf("Warning: failed to connect to bootstrap peer %s: %v\n", peerAddr, err)
		}
	}

	if cfg.EnableMDNS {
		if err := node.setupMDNS(); err != nil {
			fmt.Printf("Warning: mDNS setup failed: %v\n", err)
		}
	}

	if err := node.joinTopics(); err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to join topics: %w", err)
	}

	return node, nil
}

// joinTopics subscribes to the transaction and memo gossip topics.
func (n *Node) joinTopics() error {
	var err error

	n.txTopic, err = n.pubsub.Join(TransactionTopic)
	if err != nil {
		return fmt.Errorf("failed to join transaction topic: %w", err)
	}
	n.txSub, err = n.txTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to transactions: %w", err)
	}

	n.memoTopic, err = n.pubsub.Join(MemoTopic)
	if err != nil {
		return fmt.Errorf("failed to join memo topic: %w", err)
	}
	n.memoSub, err = n.memoTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to memos: %w", err)
	}

	return nil
}

// Start begins processing gossip messages.
func (n *Node) Start() {
	go n.processMessages(n.txSub, n.txHandler)
	go n.processMessages(n.memoSub, n.memoHandler)
	go n.prunePeersLoop()
}

// processMessages handles incoming messages on a subscription.
func (n *Node) processMessages(sub *pubsub.Subscription, handler MessageHandler) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}

		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		n.mu.Lock()
		if p, exists := n.peers[msg.ReceivedFrom]; exists {
			p.LastSeen = time.Now()
		}
		n.mu.Unlock()

		if handler != nil {
			if err := handler(n.ctx, msg); err != nil {
				fmt.Printf("message handler error: %v\n", err)
			}
		}
	}
}

// prunePeersLoop periodically drops peers that have gone quiet.
func (n *Node) prunePeersLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.pruneStale()
		}
	}
}

// pruneStale removes stale peer connections.
func (n *Node) pruneStale() {
	n.mu.Lock()
	defer n.mu.Unlock()

	staleThreshold := time.Now().Add(-5 * time.Minute)
	for id, p := range n.peers {
		if p.LastSeen.Before(staleThreshold) {
			n.host.Network().ClosePeer(id)
			delete(n.peers, id)
		}
	}
}

// SetTransactionHandler sets the handler for incoming proven transactions.
func (n *Node) SetTransactionHandler(handler MessageHandler) {
	n.txHandler = handler
}

// SetMemoHandler sets the handler for incoming memo envelopes.
func (n *Node) SetMemoHandler(handler MessageHandler) {
	n.memoHandler = handler
}

// BroadcastTransaction broadcasts an encoded transaction to the network.
func (n *Node) BroadcastTransaction(data []byte) error {
	return n.txTopic.Publish(n.ctx, data)
}

// BroadcastMemo broadcasts an encoded memo envelope to the network.
func (n *Node) BroadcastMemo(data []byte) error {
	return n.memoTopic.Publish(n.ctx, data)
}

// connectToPeer connects to a peer given its multiaddress string.
func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	peerInfo, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	if err := n.host.Connect(ctx, *peerInfo); err != nil {
		return err
	}

	addrStrs := make([]string, len(peerInfo.Addrs))
	for i, a := range peerInfo.Addrs {
		addrStrs[i] = a.String()
	}
	n.addPeer(peerInfo.ID, addrStrs)
	return nil
}

// addPeer adds a peer to the peer list.
func (n *Node) addPeer(id peer.ID, addrs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.peers[id] = &PeerInfo{
		ID:          id,
		Addrs:       addrs,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}
}

// onPeerConnected handles new peer connections.
func (n *Node) onPeerConnected(_ network.Network, conn network.Conn) {
	id := conn.RemotePeer()
	n.addPeer(id, []string{conn.RemoteMultiaddr().String()})
}

// onPeerDisconnected handles peer disconnections.
func (n *Node) onPeerDisconnected(_ network.Network, conn network.Conn) {
	id := conn.RemotePeer()
	n.mu.Lock()
	delete(n.peers, id)
	n.mu.Unlock()
}

// setupMDNS sets up mDNS for local network peer discovery.
func (n *Node) setupMDNS() error {
	service := mdns.NewMdnsService(n.host, "ccoin-pool-local", &mdnsNotifee{node: n})
	return service.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.node.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(m.node.ctx, 5*time.Second)
	defer cancel()
	m.node.host.Connect(ctx, pi)
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the node's listen addresses as strings.
func (n *Node) Addrs() []string {
	addrs := n.host.Addrs()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Peers returns information about connected peers.
func (n *Node) Peers() []*PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := make([]*PeerInfo, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	return peers
}

// Close shuts down the node.
func (n *Node) Close() error {
	n.cancel()

	if n.txSub != nil {
		n.txSub.Cancel()
	}
	if n.memoSub != nil {
		n.memoSub.Cancel()
	}

	return n.host.Close()
}

// RegisterProtocol registers a custom protocol handler.
func (n *Node) RegisterProtocol(protoID protocol.ID, handler network.StreamHandler) {
	n.host.SetStreamHandler(protoID, handler)
}

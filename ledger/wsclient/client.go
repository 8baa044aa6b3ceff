// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package wsclient implements ledger.Client over node websocket JSON-RPC.
package wsclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BoostyLabs/inscriber/ledger"
)

// ErrNotSynced defines that node is not synced with the network.
var ErrNotSynced = errors.New("node is not synced")

// errClosed defines that client connection is closed.
var errClosed = errors.New("connection closed")

// Config defines configurable values of ledger websocket client.
type Config struct {
	Endpoint       string        `yaml:"endpoint"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	RequireSynced  bool          `yaml:"requireSynced"`
}

// Dialer opens Client connections, implements ledger.Dialer.
type Dialer struct {
	config Config
	log    zerolog.Logger
}

// ensures that Dialer implements ledger.Dialer.
var _ ledger.Dialer = (*Dialer)(nil)

// NewDialer is a constructor for Dialer.
func NewDialer(config Config, log zerolog.Logger) *Dialer {
	return &Dialer{config: config, log: log}
}

// Dial connects to node and checks its sync state when required.
func (d *Dialer) Dial(ctx context.Context) (ledger.Client, error) {
	client, err := Dial(ctx, d.config, d.log)
	if err != nil {
		return nil, err
	}

	if !d.config.RequireSynced {
		return client, nil
	}

	info, err := client.ServerInfo(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	if !info.IsSynced {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w at %s", ledger.ErrExternalService, ErrNotSynced, d.config.Endpoint)
	}

	return client, nil
}

// response is a result of a single call.
type response struct {
	result json.RawMessage
	err    *RPCError
}

// Client is a ledger node websocket client.
// Notifications of all subscriptions arrive at one connection and are fanned out by address.
type Client struct {
	conn           *websocket.Conn
	requestTimeout time.Duration
	log            zerolog.Logger

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan response
	readErr error

	subsMu sync.Mutex
	subs   map[*subscription]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// ensures that Client implements ledger.Client.
var _ ledger.Client = (*Client)(nil)

// Dial opens connection to node websocket endpoint.
func Dial(ctx context.Context, config Config, log zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: config.DialTimeout}

	conn, resp, err := dialer.DialContext(ctx, config.Endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ledger.ErrExternalService, config.Endpoint, err)
	}

	client := &Client{
		conn:           conn,
		requestTimeout: config.RequestTimeout,
		log:            log,
		pending:        make(map[uint64]chan response),
		subs:           make(map[*subscription]struct{}),
		done:           make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

// ServerInfo returns node state.
func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	if err := c.call(ctx, MethodGetServerInfo, struct{}{}, &info); err != nil {
		return ServerInfo{}, err
	}

	return info, nil
}

// UTXOsByAddress returns current unspent outputs of the address.
func (c *Client) UTXOsByAddress(ctx context.Context, address string) ([]ledger.UTXO, error) {
	var result UTXOsResult
	if err := c.call(ctx, MethodGetUTXOsByAddresses, AddressesParams{Addresses: []string{address}}, &result); err != nil {
		return nil, err
	}

	utxos := make([]ledger.UTXO, 0, len(result.Entries))
	for _, entry := range result.Entries {
		utxo, err := entry.toUTXO()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ledger.ErrExternalService, err)
		}

		utxos = append(utxos, utxo)
	}

	return utxos, nil
}

// Subscribe starts delivering change notifications of addresses.
func (c *Client) Subscribe(ctx context.Context, addresses []string) (ledger.Subscription, error) {
	sub := newSubscription(c, addresses)

	c.subsMu.Lock()
	c.subs[sub] = struct{}{}
	c.subsMu.Unlock()

	if err := c.call(ctx, MethodSubscribeUTXOsChanged, AddressesParams{Addresses: addresses}, nil); err != nil {
		c.unsubscribe(sub)
		return nil, err
	}

	return sub, nil
}

// Submit broadcasts signed transaction and returns its id.
func (c *Client) Submit(ctx context.Context, tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("%w: serialize transaction: %w", ledger.ErrTransactionBuild, err)
	}

	var result SubmitResult
	err := c.call(ctx, MethodSubmitTransaction, SubmitParams{Transaction: hex.EncodeToString(buf.Bytes())}, &result)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("%w: transaction rejected: %w", ledger.ErrTransactionBuild, rpcErr)
		}

		return "", err
	}

	if result.TransactionID == "" {
		return tx.TxHash().String(), nil
	}

	return result.TransactionID, nil
}

// Close closes connection and ends all subscriptions.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
		<-c.done
	})

	return err
}

// call sends request and waits for its response. RPC errors are returned as *RPCError.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: marshal %s params: %w", ledger.ErrEncoding, method, err)
	}

	id := c.nextID.Add(1)
	respCh := make(chan response, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err = c.readErr
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ledger.ErrExternalService, method, err)
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err = c.write(ctx, Message{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: rawParams}); err != nil {
		return fmt.Errorf("%w: send %s: %w", ledger.ErrExternalService, method, err)
	}

	select {
	case resp := <-respCh:
		if resp.err != nil {
			return resp.err
		}
		if result == nil {
			return nil
		}
		if err = json.Unmarshal(resp.result, result); err != nil {
			return fmt.Errorf("%w: decode %s result: %w", ledger.ErrExternalService, method, err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ledger.ErrExternalService, method, ctx.Err())
	case <-c.done:
		return fmt.Errorf("%w: %s: %w", ledger.ErrExternalService, method, c.err())
	}
}

// write sends message with deadline taken from ctx.
func (c *Client) write(ctx context.Context, msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return c.conn.WriteJSON(msg)
}

// readLoop routes responses to callers and notifications to subscriptions.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()

			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug().Err(err).Msg("ledger connection read stopped")
			}

			c.closeSubscriptions()
			return
		}

		switch {
		case msg.ID != 0:
			c.mu.Lock()
			respCh, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				respCh <- response{result: msg.Result, err: msg.Error}
			}
		case msg.Method == NotificationUTXOsChanged:
			c.notify(msg.Params)
		default:
			c.log.Debug().Str("method", msg.Method).Msg("unexpected message")
		}
	}
}

// notify delivers change notification to matching subscriptions.
func (c *Client) notify(params json.RawMessage) {
	var notification UTXOsChanged
	if err := json.Unmarshal(params, &notification); err != nil {
		c.log.Warn().Err(err).Msg("could not decode utxos changed notification")
		return
	}

	change, err := notification.toChange()
	if err != nil {
		c.log.Warn().Err(err).Msg("could not convert utxos changed notification")
		return
	}

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for sub := range c.subs {
		if filtered, ok := filter(change, sub.addresses); ok {
			sub.deliver(filtered)
		}
	}
}

// unsubscribe removes sub and closes its channel.
func (c *Client) unsubscribe(sub *subscription) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if _, ok := c.subs[sub]; !ok {
		return
	}

	delete(c.subs, sub)
	close(sub.changes)
}

// closeSubscriptions closes all subscriptions after connection loss.
func (c *Client) closeSubscriptions() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for sub := range c.subs {
		delete(c.subs, sub)
		close(sub.changes)
	}
}

// err returns connection read error.
func (c *Client) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readErr == nil {
		return errClosed
	}

	return c.readErr
}

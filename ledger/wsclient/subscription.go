// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package wsclient

import (
	"context"
	"sync"
	"time"

	"github.com/BoostyLabs/inscriber/ledger"
)

// subscriptionBuffer defines count of changes buffered per subscription.
const subscriptionBuffer = 64

// subscription implements ledger.Subscription for a set of addresses.
type subscription struct {
	client    *Client
	addresses map[string]struct{}
	list      []string
	changes   chan ledger.UTXOChange
	closed    chan struct{}
	closeOnce sync.Once
}

// ensures that subscription implements ledger.Subscription.
var _ ledger.Subscription = (*subscription)(nil)

// newSubscription is a constructor for subscription.
func newSubscription(client *Client, addresses []string) *subscription {
	set := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		set[address] = struct{}{}
	}

	return &subscription{
		client:    client,
		addresses: set,
		list:      addresses,
		changes:   make(chan ledger.UTXOChange, subscriptionBuffer),
		closed:    make(chan struct{}),
	}
}

// Changes returns notifications channel.
func (s *subscription) Changes() <-chan ledger.UTXOChange {
	return s.changes
}

// Close ends subscription.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.client.unsubscribe(s)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		// node may already be gone, subscription is closed locally regardless.
		_ = s.client.call(ctx, MethodUnsubscribeUTXOsChanged, AddressesParams{Addresses: s.list}, nil)
	})

	return nil
}

// deliver sends change unless subscription is closed. Called under client subsMu.
func (s *subscription) deliver(change ledger.UTXOChange) {
	select {
	case s.changes <- change:
	case <-s.closed:
	}
}

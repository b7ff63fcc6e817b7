// Package handlers runs a request through an ordered chain of handlers and
// provides the built-in handlers every server needs.
package handlers

import (
	"fmt"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// Verdict tells the pipeline how to continue after a handler returned.
type Verdict int

const (
	Continue Verdict = iota
	// Drop ends the transaction without a reply.
	Drop
	// RedirectMulticast ends the transaction with a UseMulticast reply.
	RedirectMulticast
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Drop:
		return "drop"
	case RedirectMulticast:
		return "redirect-multicast"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Handler takes part in all three phases of a transaction. Pre runs before
// the response exists, Handle only when there is a response to work on and
// Post after every handler has handled the request. A non-nil error aborts
// the transaction without a reply.
type Handler interface {
	Name() string
	Pre(b *transaction.Bundle) (Verdict, error)
	Handle(b *transaction.Bundle) (Verdict, error)
	Post(b *transaction.Bundle) (Verdict, error)
}

// Base gives handlers no-op phases to embed.
type Base struct{}

func (Base) Pre(*transaction.Bundle) (Verdict, error) { return Continue, nil }

func (Base) Handle(*transaction.Bundle) (Verdict, error) { return Continue, nil }

func (Base) Post(*transaction.Bundle) (Verdict, error) { return Continue, nil }

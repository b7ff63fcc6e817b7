package handlers

import (
	"errors"
	"fmt"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// ErrRedirectOverMulticast is returned when a handler asks a client that
// already used multicast to switch to multicast.
var ErrRedirectOverMulticast = errors.New("multicast redirect for a request received over multicast")

type phase struct {
	name string
	run  func(h Handler, b *transaction.Bundle) (Verdict, error)
}

var (
	phasePre    = phase{"pre", Handler.Pre}
	phaseHandle = phase{"handle", Handler.Handle}
	phasePost   = phase{"post", Handler.Post}
)

// Pipeline is immutable once built and may be shared by concurrent
// transactions.
type Pipeline struct {
	serverID *protocol.ServerIDOption
	handlers []Handler
}

func NewPipeline(serverID protocol.DUID, handlers ...Handler) *Pipeline {
	return &Pipeline{
		serverID: &protocol.ServerIDOption{DUID: serverID},
		handlers: handlers,
	}
}

func (p *Pipeline) Handlers() []Handler {
	return p.handlers
}

func (p *Pipeline) ServerID() protocol.DUID {
	return p.serverID.DUID
}

// Run answers the request in b. On return b.Response holds the response to
// send, or nil when there is none. The returned verdict is Continue when all
// phases ran to completion.
func (p *Pipeline) Run(b *transaction.Bundle) (Verdict, error) {
	if b.Request == nil {
		return Drop, nil
	}

	if v, err := p.runPhase(phasePre, b); v != Continue || err != nil {
		return v, err
	}

	b.InitResponse()

	if b.Response != nil {
		if v, err := p.runPhase(phaseHandle, b); v != Continue || err != nil {
			return v, err
		}
	}

	return p.runPhase(phasePost, b)
}

func (p *Pipeline) runPhase(ph phase, b *transaction.Bundle) (Verdict, error) {
	for _, h := range p.handlers {
		v, err := ph.run(h, b)
		if err != nil {
			b.Response = nil
			b.Logger().Error("Handler failed", "handler", h.Name(), "phase", ph.name, "error", err)
			return Drop, fmt.Errorf("%s %s: %w", h.Name(), ph.name, err)
		}

		switch v {
		case Continue:
			continue
		case Drop:
			b.Logger().Debug("Handler dropped the request", "handler", h.Name(), "phase", ph.name)
			b.Response = nil
			return Drop, nil
		case RedirectMulticast:
			return p.redirect(b, h)
		default:
			b.Response = nil
			b.Logger().Error("Handler returned an unknown verdict", "handler", h.Name(), "phase", ph.name, "verdict", v.String())
			return Drop, fmt.Errorf("%s %s: unknown verdict %s", h.Name(), ph.name, v)
		}
	}
	return Continue, nil
}

// redirect replaces the response with a Reply telling the client to use
// multicast.
func (p *Pipeline) redirect(b *transaction.Bundle, h Handler) (Verdict, error) {
	if b.ReceivedOverMulticast {
		b.Response = nil
		b.Logger().Error("Handler redirected a request that already used multicast", "handler", h.Name())
		return Drop, fmt.Errorf("%s: %w", h.Name(), ErrRedirectOverMulticast)
	}

	b.Logger().Debug("Telling client to use multicast", "handler", h.Name())

	resp := protocol.NewMessage(protocol.MessageTypeReply, b.Request.TransactionID)
	if cid := b.Request.Option(protocol.OptionClientID); cid != nil {
		resp.AddOption(cid)
	}
	resp.AddOption(p.serverID)
	resp.AddOption(&protocol.StatusCodeOption{
		Status:  protocol.StatusUseMulticast,
		Message: "Please use multicast",
	})
	b.Response = resp
	return RedirectMulticast, nil
}

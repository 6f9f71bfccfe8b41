// Package governance implements the core's per-sender capability policy and
// gated bus dispatch.
package governance

import (
	"sync"

	"github.com/alphacouncil/core/internal/bus"
	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/obslog"
)

// Capability is one grantable action.
type Capability string

const (
	CapabilityReadPortfolio Capability = "read_portfolio"
	CapabilityTrade         Capability = "trade"
)

// Policy is one sender's grant: which capabilities it holds and which
// recipients it may address (spec's AgentPolicy).
type Policy struct {
	Name              string
	Capabilities      map[Capability]bool
	AllowedRecipients map[string]bool // may include bus.Broadcast
}

// alwaysAuthorizedSubjects are the Orchestrator's own lifecycle-event
// emissions, which are always authorized.
var alwaysAuthorizedSubjects = map[string]bool{
	"agent_started":        true,
	"agent_complete":       true,
	"intent_classified":    true,
	"swarm_started":        true,
	"risk_review_started":  true,
	"reasoning_started":    true,
	"context_fabricated":   true,
}

// Table holds the policy set, keyed by sender name, and wraps a Bus with
// authorization checks.
type Table struct {
	mu       sync.RWMutex
	policies map[string]Policy
	bus      *bus.Bus
}

func NewTable(b *bus.Bus) *Table {
	return &Table{
		policies: make(map[string]Policy),
		bus:      b,
	}
}

// Register installs or replaces a sender's policy.
func (t *Table) Register(p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[p.Name] = p
}

// IsAuthorized reports whether sender may send a message to an optional
// recipient: sender must have a registered policy and, when recipient is
// non-empty, that policy must allow recipient or bus.Broadcast. Capabilities
// are not checked here (see IsAuthorizedForCapability). Lifecycle-event
// subjects emitted by the Orchestrator are always authorized regardless of
// policy table contents.
func (t *Table) IsAuthorized(sender, subject string, recipient string) bool {
	if alwaysAuthorizedSubjects[subject] {
		return true
	}

	t.mu.RLock()
	p, ok := t.policies[sender]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	if recipient != "" {
		if !p.AllowedRecipients[recipient] && !p.AllowedRecipients[bus.Broadcast] {
			return false
		}
	}
	return true
}

// IsAuthorizedForCapability checks a specific capability grant, e.g. before
// allowing a specialist's tool call to read portfolio data or place a trade.
func (t *Table) IsAuthorizedForCapability(sender string, cap Capability) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[sender]
	if !ok {
		return false
	}
	return p.Capabilities[cap]
}

// SecureDispatch wraps Bus.Send: unauthorized sends are dropped with a logged
// error and never reach the bus.
func (t *Table) SecureDispatch(msg bus.Message) error {
	log := obslog.New("governance")

	if !t.IsAuthorized(msg.Sender, msg.Subject, msg.Recipient) {
		log.Error().
			Str("sender", msg.Sender).
			Str("recipient", msg.Recipient).
			Str("subject", msg.Subject).
			Msg("governance denied: dropping unauthorized bus send")
		return errkind.New(errkind.GovernanceDenied, "sender "+msg.Sender+" not authorized to send "+msg.Subject+" to "+msg.Recipient)
	}

	return t.bus.Send(msg)
}

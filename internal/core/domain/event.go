package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names an audit event. The names and field order of the payloads
// are consumed by the external indexer and must stay stable.
type EventKind string

const (
	EventOrderPaid                    EventKind = "OrderPaid"
	EventRecipientChanged             EventKind = "RecipientChanged"
	EventSignerChanged                EventKind = "SignerChanged"
	EventStatusChanged                EventKind = "StatusChanged"
	EventStatusForDelegatedPayChanged EventKind = "StatusForDelegatedPayChanged"
)

// Event is an audit payload.
type Event interface {
	Kind() EventKind
}

type OrderPaid struct {
	Buyer   common.Address `json:"buyer"`
	OrderID string         `json:"orderId"`
	Coin    common.Address `json:"coin"`
	Amount  *big.Int       `json:"amount"`
}

func (OrderPaid) Kind() EventKind { return EventOrderPaid }

type RecipientChanged struct {
	Old common.Address `json:"old"`
	New common.Address `json:"new"`
}

func (RecipientChanged) Kind() EventKind { return EventRecipientChanged }

type SignerChanged struct {
	Old common.Address `json:"old"`
	New common.Address `json:"new"`
}

func (SignerChanged) Kind() EventKind { return EventSignerChanged }

type StatusChanged struct {
	Enabled bool `json:"enabled"`
}

func (StatusChanged) Kind() EventKind { return EventStatusChanged }

type StatusForDelegatedPayChanged struct {
	DelegatedEnabled bool `json:"delegatedEnabled"`
}

func (StatusForDelegatedPayChanged) Kind() EventKind { return EventStatusForDelegatedPayChanged }

// AuditRecord is the append-only envelope around an Event. Seq is assigned by
// the audit log and is strictly increasing.
type AuditRecord struct {
	Seq        uint64    `json:"seq"`
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Event      Event     `json:"event"`
}

// Payload returns the JSON encoding of the event body.
func (r AuditRecord) Payload() ([]byte, error) {
	return json.Marshal(r.Event)
}

// DecodeEvent rebuilds an Event from its kind and JSON payload.
func DecodeEvent(kind EventKind, payload []byte) (Event, error) {
	var evt Event
	switch kind {
	case EventOrderPaid:
		var e OrderPaid
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		evt = e
	case EventRecipientChanged:
		var e RecipientChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		evt = e
	case EventSignerChanged:
		var e SignerChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		evt = e
	case EventStatusChanged:
		var e StatusChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		evt = e
	case EventStatusForDelegatedPayChanged:
		var e StatusForDelegatedPayChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		evt = e
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return evt, nil
}

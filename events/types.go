package events

import (
	"time"

	"github.com/holiman/uint256"
)

// EventType is an enum-like string type for channel events
type EventType string

const (
	EventChannelOpened   EventType = "ChannelOpened"
	EventPaymentSigned   EventType = "PaymentSigned"
	EventTopupPerformed  EventType = "TopupPerformed"
	EventChannelClosed   EventType = "ChannelClosed"
	EventChannelDisputed EventType = "ChannelDisputed"
)

// ChannelEvent represents any event that occurs in the channel engine
type ChannelEvent interface {
	Type() EventType
	Timestamp() time.Time
	ChannelID() string
}

// ChannelOpened event when a channel is opened on-chain and inserted
type ChannelOpened struct {
	channelID string
	recipient string
	deposit   *uint256.Int
	timestamp time.Time
}

func NewChannelOpened(channelID, recipient string, deposit *uint256.Int) *ChannelOpened {
	return &ChannelOpened{
		channelID: channelID,
		recipient: recipient,
		deposit:   deposit,
		timestamp: time.Now(),
	}
}

func (e *ChannelOpened) Type() EventType {
	return EventChannelOpened
}

func (e *ChannelOpened) Timestamp() time.Time {
	return e.timestamp
}

func (e *ChannelOpened) ChannelID() string {
	return e.channelID
}

func (e *ChannelOpened) Recipient() string {
	return e.recipient
}

func (e *ChannelOpened) Deposit() *uint256.Int {
	return e.deposit
}

// PaymentSigned event when a cumulative payment (or batch) is signed
type PaymentSigned struct {
	channelID  string
	cumulative *uint256.Int
	nonce      uint64
	items      int
	timestamp  time.Time
}

func NewPaymentSigned(channelID string, cumulative *uint256.Int, nonce uint64, items int) *PaymentSigned {
	return &PaymentSigned{
		channelID:  channelID,
		cumulative: cumulative,
		nonce:      nonce,
		items:      items,
		timestamp:  time.Now(),
	}
}

func (e *PaymentSigned) Type() EventType {
	return EventPaymentSigned
}

func (e *PaymentSigned) Timestamp() time.Time {
	return e.timestamp
}

func (e *PaymentSigned) ChannelID() string {
	return e.channelID
}

func (e *PaymentSigned) Cumulative() *uint256.Int {
	return e.cumulative
}

func (e *PaymentSigned) Nonce() uint64 {
	return e.nonce
}

func (e *PaymentSigned) Items() int {
	return e.items
}

// TopupPerformed event when the auto-topup engine raises the deposit
type TopupPerformed struct {
	channelID  string
	amount     *uint256.Int
	newDeposit *uint256.Int
	timestamp  time.Time
}

func NewTopupPerformed(channelID string, amount, newDeposit *uint256.Int) *TopupPerformed {
	return &TopupPerformed{
		channelID:  channelID,
		amount:     amount,
		newDeposit: newDeposit,
		timestamp:  time.Now(),
	}
}

func (e *TopupPerformed) Type() EventType {
	return EventTopupPerformed
}

func (e *TopupPerformed) Timestamp() time.Time {
	return e.timestamp
}

func (e *TopupPerformed) ChannelID() string {
	return e.channelID
}

func (e *TopupPerformed) Amount() *uint256.Int {
	return e.amount
}

func (e *TopupPerformed) NewDeposit() *uint256.Int {
	return e.newDeposit
}

// ChannelClosed event when a channel reaches the closed state
type ChannelClosed struct {
	channelID  string
	settled    *uint256.Int
	unresolved bool
	timestamp  time.Time
}

func NewChannelClosed(channelID string, settled *uint256.Int, unresolved bool) *ChannelClosed {
	return &ChannelClosed{
		channelID:  channelID,
		settled:    settled,
		unresolved: unresolved,
		timestamp:  time.Now(),
	}
}

func (e *ChannelClosed) Type() EventType {
	return EventChannelClosed
}

func (e *ChannelClosed) Timestamp() time.Time {
	return e.timestamp
}

func (e *ChannelClosed) ChannelID() string {
	return e.channelID
}

func (e *ChannelClosed) Settled() *uint256.Int {
	return e.settled
}

func (e *ChannelClosed) Unresolved() bool {
	return e.unresolved
}

// ChannelDisputed event when a dispute was submitted on-chain
type ChannelDisputed struct {
	channelID string
	nonce     uint64
	deadline  time.Time
	timestamp time.Time
}

func NewChannelDisputed(channelID string, nonce uint64, deadline time.Time) *ChannelDisputed {
	return &ChannelDisputed{
		channelID: channelID,
		nonce:     nonce,
		deadline:  deadline,
		timestamp: time.Now(),
	}
}

func (e *ChannelDisputed) Type() EventType {
	return EventChannelDisputed
}

func (e *ChannelDisputed) Timestamp() time.Time {
	return e.timestamp
}

func (e *ChannelDisputed) ChannelID() string {
	return e.channelID
}

func (e *ChannelDisputed) Nonce() uint64 {
	return e.nonce
}

func (e *ChannelDisputed) Deadline() time.Time {
	return e.deadline
}

package domain

import (
	"fmt"
	"time"
)

type AIRole string

const (
	RoleSystem    AIRole = "system"
	RoleUser      AIRole = "user"
	RoleAssistant AIRole = "assistant"
)

type AIMessage struct {
	Role    AIRole `json:"role"`
	Content string `json:"content"`
}

// Validate rejects unknown roles.
func (m AIMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("unknown message role %q", m.Role)
	}
}

type NegotiationStatus string

const (
	NegotiationPending   NegotiationStatus = "pending"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationRejected  NegotiationStatus = "rejected"
	NegotiationCompleted NegotiationStatus = "completed"
)

var negotiationTransitions = map[NegotiationStatus][]NegotiationStatus{
	NegotiationPending:  {NegotiationAccepted, NegotiationRejected},
	NegotiationAccepted: {NegotiationCompleted},
}

// CanTransition reports whether a negotiation may move from s to next.
func (s NegotiationStatus) CanTransition(next NegotiationStatus) bool {
	for _, allowed := range negotiationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Negotiation struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	ProductID         int64             `json:"productId"`
	InitialPriceCents int64             `json:"initialPriceCents"`
	FinalPriceCents   *int64            `json:"finalPriceCents,omitempty"`
	Status            NegotiationStatus `json:"status"`
	Messages          []AIMessage       `json:"messages"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// Transition moves the negotiation to next or returns ErrInvalidTransition.
func (n *Negotiation) Transition(next NegotiationStatus) error {
	if !n.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, next)
	}
	n.Status = next
	return nil
}

type Conversation struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Messages  []AIMessage `json:"messages"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Search struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Query           string    `json:"query"`
	Recommendations []int64   `json:"recommendations"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Recommendation struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Reason  string   `json:"reason"`
	Product *Product `json:"product,omitempty"`
}

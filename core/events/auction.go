package events

import "time"

// AuctionEvent summarizes one auction. Bids is empty when the task was
// assigned without bidding.
type AuctionEvent struct {
	TaskID string
	Winner string
	Bids   map[string]float64
	Tied   []string
	Time   time.Time
}

// NegotiationEvent summarizes one pairwise negotiation.
// Moved counts the tasks that changed owner.
type NegotiationEvent struct {
	Initiator string
	Peer      string
	Tasks     int
	Moved     int
	Err       error
	Time      time.Time
}

// Package events defines the notifications exchanged by the fleet components.
//
// Available event types:
//   - VehicleEvent: state transition reported by the motion layer
//   - AssignmentChanged: a communicator's assigned set changed
//   - RouteChanged: an agent pushed a new route to its vehicle
//   - AuctionEvent: outcome of one auction
//   - NegotiationEvent: outcome of one pairwise negotiation
package events

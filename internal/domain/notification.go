// Package domain contains shared types used across the notification modules.
package domain

// Channel represents a delivery channel.
type Channel string

// Delivery channels.
const (
	ChannelInbox Channel = "INBOX"
	ChannelEmail Channel = "EMAIL"
)

// Valid reports whether the channel is a known delivery channel.
func (c Channel) Valid() bool {
	return c == ChannelInbox || c == ChannelEmail
}

// Category groups event types for the user-facing inbox.
type Category string

// Inbox categories.
const (
	CategoryProject   Category = "PROJECT"
	CategoryDemand    Category = "DEMAND"
	CategoryResponse  Category = "RESPONSE"
	CategoryToken     Category = "TOKEN"
	CategoryBooking   Category = "BOOKING"
	CategoryMeeting   Category = "MEETING"
	CategoryCommunity Category = "COMMUNITY"
	CategoryDM        Category = "DM"
	CategoryNetwork   Category = "NETWORK"
	CategorySystem    Category = "SYSTEM"
)

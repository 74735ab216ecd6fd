package domain

// EventType identifies a business event that produces notifications.
type EventType string

// Project events.
const (
	EventProjectSubmitted        EventType = "PROJECT_SUBMITTED"
	EventProjectApproved         EventType = "PROJECT_APPROVED"
	EventProjectRejected         EventType = "PROJECT_REJECTED"
	EventProjectUpdated          EventType = "PROJECT_UPDATED"
	EventProjectArchived         EventType = "PROJECT_ARCHIVED"
	EventProjectCommented        EventType = "PROJECT_COMMENTED"
	EventProjectMilestoneReached EventType = "PROJECT_MILESTONE_REACHED"
	EventProjectTimelineUpdated  EventType = "PROJECT_TIMELINE_UPDATED"
)

// Demand events.
const (
	EventDemandPublished EventType = "DEMAND_PUBLISHED"
	EventDemandMatched   EventType = "DEMAND_MATCHED"
	EventDemandClosed    EventType = "DEMAND_CLOSED"
	EventDemandExpiring  EventType = "DEMAND_EXPIRING"
)

// Response events.
const (
	EventResponseSubmitted EventType = "RESPONSE_SUBMITTED"
	EventResponseAccepted  EventType = "RESPONSE_ACCEPTED"
	EventResponseDeclined  EventType = "RESPONSE_DECLINED"
	EventResponseWithdrawn EventType = "RESPONSE_WITHDRAWN"
)

// Funding token events.
const (
	EventTokenGranted       EventType = "TOKEN_GRANTED"
	EventTokenGrantRejected EventType = "TOKEN_GRANT_REJECTED"
	EventTokenTransferred   EventType = "TOKEN_TRANSFERRED"
	EventTokenReceived      EventType = "TOKEN_RECEIVED"
	EventTokenRedeemed      EventType = "TOKEN_REDEEMED"
	EventTokenExpiring      EventType = "TOKEN_EXPIRING"
)

// Venue booking events.
const (
	EventBookingRequested EventType = "BOOKING_REQUESTED"
	EventBookingConfirmed EventType = "BOOKING_CONFIRMED"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
	EventBookingReminder  EventType = "BOOKING_REMINDER"
	EventVenueUnavailable EventType = "VENUE_UNAVAILABLE"
)

// Meeting and vote events.
const (
	EventMeetingInvited          EventType = "MEETING_INVITED"
	EventMeetingUpdated          EventType = "MEETING_UPDATED"
	EventMeetingCancelled        EventType = "MEETING_CANCELLED"
	EventMeetingReminder         EventType = "MEETING_REMINDER"
	EventMeetingMinutesPublished EventType = "MEETING_MINUTES_PUBLISHED"
	EventVoteOpened              EventType = "VOTE_OPENED"
	EventVoteClosed              EventType = "VOTE_CLOSED"
	EventVoteReminder            EventType = "VOTE_REMINDER"
)

// Community feed events.
const (
	EventCommunityPostPublished EventType = "COMMUNITY_POST_PUBLISHED"
	EventCommunityMention       EventType = "COMMUNITY_MENTION"
	EventCommunityReplyReceived EventType = "COMMUNITY_REPLY_RECEIVED"
	EventCommunityPostLiked     EventType = "COMMUNITY_POST_LIKED"
)

// Direct message events.
const (
	EventDMReceived EventType = "DM_RECEIVED"
)

// Partner network events.
const (
	EventMemberJoined          EventType = "MEMBER_JOINED"
	EventMemberApproved        EventType = "MEMBER_APPROVED"
	EventMemberSuspended       EventType = "MEMBER_SUSPENDED"
	EventMemberRoleChanged     EventType = "MEMBER_ROLE_CHANGED"
	EventPartnerInviteReceived EventType = "PARTNER_INVITE_RECEIVED"
	EventPartnerInviteAccepted EventType = "PARTNER_INVITE_ACCEPTED"
	EventNewsPublished         EventType = "NEWS_PUBLISHED"
)

// System events.
const (
	EventSystemAnnouncement         EventType = "SYSTEM_ANNOUNCEMENT"
	EventSystemMaintenanceScheduled EventType = "SYSTEM_MAINTENANCE_SCHEDULED"
	EventPasswordChanged            EventType = "PASSWORD_CHANGED"
	EventLoginFromNewDevice         EventType = "LOGIN_FROM_NEW_DEVICE"
	EventAccountLocked              EventType = "ACCOUNT_LOCKED"
)

var eventCategories = map[EventType]Category{
	EventProjectSubmitted:        CategoryProject,
	EventProjectApproved:         CategoryProject,
	EventProjectRejected:         CategoryProject,
	EventProjectUpdated:          CategoryProject,
	EventProjectArchived:         CategoryProject,
	EventProjectCommented:        CategoryProject,
	EventProjectMilestoneReached: CategoryProject,
	EventProjectTimelineUpdated:  CategoryProject,

	EventDemandPublished: CategoryDemand,
	EventDemandMatched:   CategoryDemand,
	EventDemandClosed:    CategoryDemand,
	EventDemandExpiring:  CategoryDemand,

	EventResponseSubmitted: CategoryResponse,
	EventResponseAccepted:  CategoryResponse,
	EventResponseDeclined:  CategoryResponse,
	EventResponseWithdrawn: CategoryResponse,

	EventTokenGranted:       CategoryToken,
	EventTokenGrantRejected: CategoryToken,
	EventTokenTransferred:   CategoryToken,
	EventTokenReceived:      CategoryToken,
	EventTokenRedeemed:      CategoryToken,
	EventTokenExpiring:      CategoryToken,

	EventBookingRequested: CategoryBooking,
	EventBookingConfirmed: CategoryBooking,
	EventBookingCancelled: CategoryBooking,
	EventBookingReminder:  CategoryBooking,
	EventVenueUnavailable: CategoryBooking,

	EventMeetingInvited:          CategoryMeeting,
	EventMeetingUpdated:          CategoryMeeting,
	EventMeetingCancelled:        CategoryMeeting,
	EventMeetingReminder:         CategoryMeeting,
	EventMeetingMinutesPublished: CategoryMeeting,
	EventVoteOpened:              CategoryMeeting,
	EventVoteClosed:              CategoryMeeting,
	EventVoteReminder:            CategoryMeeting,

	EventCommunityPostPublished: CategoryCommunity,
	EventCommunityMention:       CategoryCommunity,
	EventCommunityReplyReceived: CategoryCommunity,
	EventCommunityPostLiked:     CategoryCommunity,

	EventDMReceived: CategoryDM,

	EventMemberJoined:          CategoryNetwork,
	EventMemberApproved:        CategoryNetwork,
	EventMemberSuspended:       CategoryNetwork,
	EventMemberRoleChanged:     CategoryNetwork,
	EventPartnerInviteReceived: CategoryNetwork,
	EventPartnerInviteAccepted: CategoryNetwork,
	EventNewsPublished:         CategoryNetwork,

	EventSystemAnnouncement:         CategorySystem,
	EventSystemMaintenanceScheduled: CategorySystem,
	EventPasswordChanged:            CategorySystem,
	EventLoginFromNewDevice:         CategorySystem,
	EventAccountLocked:              CategorySystem,
}

// CategoryOf returns the inbox category for an event type.
// Unknown event types fall back to SYSTEM.
func CategoryOf(t EventType) Category {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategorySystem
}

// KnownEventType reports whether t is part of the event catalog.
func KnownEventType(t EventType) bool {
	_, ok := eventCategories[t]
	return ok
}

// EventTypes returns all catalogued event types. Order is unspecified.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(eventCategories))
	for t := range eventCategories {
		types = append(types, t)
	}
	return types
}

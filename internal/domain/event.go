package domain

import "context"

// EventKind names a state-change event pushed to connected clients.
type EventKind string

const (
	EventUserUpdate  EventKind = "user_update"
	EventPollUpdate  EventKind = "poll_update"
	EventLikesUpdate EventKind = "likes_update"
)

// Event is a single state-change notification. Data holds a User, a []PollOption
// or a Likes value depending on Kind.
type Event struct {
	Kind EventKind `json:"event"`
	Data any       `json:"data"`
}

func UserUpdated(user User) Event {
	return Event{Kind: EventUserUpdate, Data: user}
}

func PollUpdated(options []PollOption) Event {
	return Event{Kind: EventPollUpdate, Data: options}
}

func LikesUpdated(likes Likes) Event {
	return Event{Kind: EventLikesUpdate, Data: likes}
}

// EventPublisher fans events out to every connected observer.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

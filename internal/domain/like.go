package domain

// DefaultStreamID identifies the single active stream of a session.
const DefaultStreamID = 1

// Likes is the set of users who liked a stream, in first-liked order.
type Likes struct {
	StreamID int      `json:"stream_id"`
	Likes    []string `json:"likes"`
}

// Snapshot is the full poll and likes state a joining client reconciles against.
type Snapshot struct {
	Poll  []PollOption
	Likes Likes
}

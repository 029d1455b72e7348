package domain

// PollOption is one answer of the session poll together with its tally.
type PollOption struct {
	Option string `json:"option"`
	Votes  int    `json:"votes"`
}

// DefaultPollOptions seeds the poll when no options are configured.
var DefaultPollOptions = []string{"Song A", "Song B"}

// DefaultHostUsername is the reserved identifier that receives host rights.
const DefaultHostUsername = "HostUser"

package outbox

// ChannelCounts holds per-status record counts for one channel.
type ChannelCounts struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// Stats aggregates the ledger for the reconciliation surface.
// Retryable and MaxRetriesReached partition all FAILED rows.
type Stats struct {
	Inbox             ChannelCounts `json:"inbox"`
	Email             ChannelCounts `json:"email"`
	Retryable         int64         `json:"retryable"`
	MaxRetriesReached int64         `json:"max_retries_reached"`
}

// Total returns counts summed over both channels.
func (s *Stats) Total() ChannelCounts {
	return ChannelCounts{
		Pending: s.Inbox.Pending + s.Email.Pending,
		Sent:    s.Inbox.Sent + s.Email.Sent,
		Failed:  s.Inbox.Failed + s.Email.Failed,
	}
}

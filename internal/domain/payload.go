package domain

// ResponsePayload is the normalized result of one webhook exchange, however
// the remote side chose to shape its reply.
type ResponsePayload struct {
	Text             string
	SuggestedReplies []string
}

package guestbook_client

const (
	// API Endpoints
	GuestsEndpoint        = "/v1/guests"
	TranscriptEndpointFmt = "/v1/rooms/%s/transcript"
)

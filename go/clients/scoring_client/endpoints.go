package scoring_client

const (
	// API Endpoints
	EvaluateEndpoint = "/v1/evaluate"
)

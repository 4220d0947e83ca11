package models

// StreamResponse is one chunk of a streamed chat reply.
type StreamResponse struct {
	Content string
	Err     error
	Done    bool
}

// AIError is the error envelope returned by chat APIs.
type AIError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

package contract

type SendRequest struct {
	Text string `json:"text"`
}

type MessageView struct {
	Message
	HTML string `json:"html"`
	Mine bool   `json:"mine"`
}

// Frame is pushed to a connected client every time the room changes.
type Frame struct {
	Room     string        `json:"room"`
	Messages []MessageView `json:"messages"`
	Error    string        `json:"error,omitempty"`
}

package types

// MessageRole identifies the author of a chat message sent to the LLM.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // RoleSystem indicates instructions for the model.
	RoleUser      MessageRole = "user"      // RoleUser indicates input from the user or orchestrator.
	RoleAssistant MessageRole = "assistant" // RoleAssistant indicates a model response.
)

// Message represents a single chat message exchanged with an LLM provider.
// ImageData optionally attaches a captured page screenshot for vision calls.
type Message struct {
	// Role indicates who authored the message.
	Role MessageRole

	// Content is the text body of the message.
	Content string

	// ImageData is an optional raw image attached to the message.
	// Providers encode it as an inline data URL for multimodal requests.
	ImageData []byte

	// ImageMIME is the media type of ImageData (e.g. "image/jpeg").
	ImageMIME string
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-role message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// NewVisionMessage creates a user-role message carrying an image.
func NewVisionMessage(content string, imageData []byte, imageMIME string) *Message {
	return &Message{
		Role:      RoleUser,
		Content:   content,
		ImageData: imageData,
		ImageMIME: imageMIME,
	}
}

// HasImage reports whether the message carries image data.
func (m *Message) HasImage() bool {
	return len(m.ImageData) > 0
}

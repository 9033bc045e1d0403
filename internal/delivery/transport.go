package delivery

import "context"

// MessageRef identifies a sent chat message.
type MessageRef struct {
	ChatID    string
	MessageID int64
}

// ProgressFunc receives upload progress in bytes. total is 0 when unknown.
type ProgressFunc func(sent, total int64)

// Upload is a file sent to a chat.
type Upload struct {
	Path     string
	Caption  string
	Progress ProgressFunc
}

// VideoUpload is a streaming video with inline metadata.
type VideoUpload struct {
	Upload
	Thumbnail string
	Duration  int
	Width     int
	Height    int
}

// Transport is the chat surface used for progress and delivery.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) error
	SendDocument(ctx context.Context, chatID string, doc Upload) error
	SendVideo(ctx context.Context, chatID string, video VideoUpload) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

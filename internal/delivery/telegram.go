package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mpdgrab/internal/config"
)

// Telegram implements Transport over the Telegram Bot API.
type Telegram struct {
	baseURL       string
	token         string
	client        *http.Client
	uploadTimeout time.Duration
}

// TelegramOption configures the Telegram transport.
type TelegramOption func(*Telegram)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		if client != nil {
			t.client = client
		}
	}
}

// NewTelegram constructs a Bot API transport.
func NewTelegram(cfg config.Telegram, opts ...TelegramOption) (*Telegram, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("telegram bot token required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	t := &Telegram{
		baseURL:       base,
		token:         token,
		client:        &http.Client{},
		uploadTimeout: time.Duration(cfg.UploadTimeoutSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

// APIError is a Bot API call rejected by Telegram.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// SendText posts a plain text message.
func (t *Telegram) SendText(ctx context.Context, chatID, text string) (MessageRef, error) {
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := t.callJSON(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text}, &msg); err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChatID: chatID, MessageID: msg.MessageID}, nil
}

// EditText replaces the text of a previously sent message.
func (t *Telegram) EditText(ctx context.Context, ref MessageRef, text string) error {
	return t.callJSON(ctx, "editMessageText", map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
		"text":       text,
	}, nil)
}

// DeleteMessage removes a message.
func (t *Telegram) DeleteMessage(ctx context.Context, ref MessageRef) error {
	return t.callJSON(ctx, "deleteMessage", map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
	}, nil)
}

// SendDocument uploads a file as a generic document.
func (t *Telegram) SendDocument(ctx context.Context, chatID string, doc Upload) error {
	fields := map[string]string{"chat_id": chatID}
	if doc.Caption != "" {
		fields["caption"] = doc.Caption
	}
	files := []formFile{{field: "document", path: doc.Path, progress: doc.Progress}}
	return t.callMultipart(ctx, "sendDocument", fields, files)
}

// SendVideo uploads a streaming video with thumbnail, duration, and dimensions.
func (t *Telegram) SendVideo(ctx context.Context, chatID string, video VideoUpload) error {
	fields := map[string]string{
		"chat_id":            chatID,
		"supports_streaming": "true",
	}
	if video.Caption != "" {
		fields["caption"] = video.Caption
	}
	if video.Duration > 0 {
		fields["duration"] = strconv.Itoa(video.Duration)
	}
	if video.Width > 0 && video.Height > 0 {
		fields["width"] = strconv.Itoa(video.Width)
		fields["height"] = strconv.Itoa(video.Height)
	}
	files := []formFile{{field: "video", path: video.Path, progress: video.Progress}}
	if video.Thumbnail != "" {
		if _, err := os.Stat(video.Thumbnail); err == nil {
			files = append(files, formFile{field: "thumbnail", path: video.Thumbnail})
		}
	}
	return t.callMultipart(ctx, "sendVideo", fields, files)
}

func (t *Telegram) endpoint(method string) string {
	return t.baseURL + "/bot" + t.token + "/" + method
}

func (t *Telegram) callJSON(ctx context.Context, method string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, t.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, method, out)
}

type formFile struct {
	field    string
	path     string
	progress ProgressFunc
}

func (t *Telegram) callMultipart(ctx context.Context, method string, fields map[string]string, files []formFile) error {
	if t.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.uploadTimeout)
		defer cancel()
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeForm(writer, fields, files))
	}()
	finish := func() {
		_ = pr.CloseWithError(io.ErrClosedPipe)
		<-done
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(method), pr)
	if err != nil {
		finish()
		return fmt.Errorf("telegram %s: build request: %w", method, t.redact(err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	err = t.do(req, method, nil)
	finish()
	return err
}

func writeForm(writer *multipart.Writer, fields map[string]string, files []formFile) error {
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	for _, f := range files {
		if err := writeFile(writer, f); err != nil {
			return err
		}
	}
	return writer.Close()
}

func writeFile(writer *multipart.Writer, f formFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	part, err := writer.CreateFormFile(f.field, filepath.Base(f.path))
	if err != nil {
		return err
	}
	var src io.Reader = file
	if f.progress != nil {
		src = &progressReader{r: file, total: info.Size(), fn: f.progress}
	}
	_, err = io.Copy(part, src)
	return err
}

// redact strips the bot token from transport errors, which carry the request URL.
func (t *Telegram) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, "/bot"+t.token+"/", "/bot<redacted>/")
		urlErr.URL = strings.ReplaceAll(urlErr.URL, t.token, "<redacted>")
	}
	return err
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}

func (t *Telegram) do(req *http.Request, method string, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, t.redact(err))
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode, err)
	}
	if !decoded.OK {
		code := decoded.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: decoded.Description}
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

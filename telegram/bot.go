// Package telegram is a minimal Telegram Bot API client covering the
// calls the dispenser bot needs: text replies, reply keyboards, and
// document upload/download.
package telegram

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.telegram")

const (
	defaultBaseURL = "https://api.telegram.org"

	maxItemsPerRow = 4
	homeText       = "Back to home"
)

// BotError carries a failed API call's status and the description
// Telegram returned, when present.
type BotError struct {
	StatusCode  int
	Description string
}

func (e *BotError) Error() string {
	return fmt.Sprintf("telegram: api call failed with status %d: %s", e.StatusCode, e.Description)
}

type Bot struct {
	rest    *resty.Client
	token   string
	baseURL string
}

type Option func(*Bot)

func WithBaseURL(u string) Option {
	return func(b *Bot) { b.baseURL = u }
}

func WithRestyClient(c *resty.Client) Option {
	return func(b *Bot) { b.rest = c }
}

func NewBot(token string, opts ...Option) *Bot {
	b := &Bot{
		rest:    resty.New().SetTimeout(30 * time.Second),
		token:   token,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bot) methodURL(method string) string {
	return b.baseURL + "/bot" + b.token + "/" + method
}

// MakeKeyboard lays items out into rows of at most perRow buttons
// (capped at maxItemsPerRow) and optionally appends a home row.
func MakeKeyboard(items []string, perRow int, addHome bool) [][]string {
	if perRow <= 0 || perRow > maxItemsPerRow {
		perRow = maxItemsPerRow
	}

	var rows [][]string
	for len(items) > 0 {
		n := perRow
		if len(items) < n {
			n = len(items)
		}
		rows = append(rows, items[:n])
		items = items[n:]
	}
	if addHome {
		rows = append(rows, []string{homeText})
	}
	return rows
}

// SendMessage sends a plain text message to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	return b.sendMessage(ctx, chatID, text, nil, false)
}

// SendKeyboard sends text together with a one-time resized reply
// keyboard.
func (b *Bot) SendKeyboard(ctx context.Context, chatID, text string, keyboard [][]string) error {
	return b.sendMessage(ctx, chatID, text, keyboard, false)
}

// HideKeyboard sends text and removes any reply keyboard the chat is
// showing.
func (b *Bot) HideKeyboard(ctx context.Context, chatID, text string) error {
	return b.sendMessage(ctx, chatID, text, nil, true)
}

func (b *Bot) sendMessage(ctx context.Context, chatID, text string, keyboard [][]string, hide bool) error {

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("chat_id", func(e *jx.Encoder) { e.Str(chatID) })
		e.Field("text", func(e *jx.Encoder) { e.Str(text) })
		switch {
		case keyboard != nil:
			e.Field("reply_markup", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("keyboard", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, row := range keyboard {
								e.Arr(func(e *jx.Encoder) {
									for _, item := range row {
										e.Str(item)
									}
								})
							}
						})
					})
					e.Field("one_time_keyboard", func(e *jx.Encoder) { e.Bool(true) })
					e.Field("resize_keyboard", func(e *jx.Encoder) { e.Bool(true) })
				})
			})
		case hide:
			e.Field("reply_markup", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("hide_keyboard", func(e *jx.Encoder) { e.Bool(true) })
				})
			})
		}
	})

	resp, err := b.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e.Bytes()).
		Post(b.methodURL("sendMessage"))
	if err != nil {
		return errors.Wrap(err, "sendMessage")
	}
	if err := checkResponse(resp); err != nil {
		return err
	}

	logger.WithField("chat", chatID).Debug("message sent")
	return nil
}

// GetFilePath resolves a file_id to the bot-relative file path via
// getFile.
func (b *Bot) GetFilePath(ctx context.Context, fileID string) (string, error) {

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("file_id", func(e *jx.Encoder) { e.Str(fileID) })
	})

	resp, err := b.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e.Bytes()).
		Post(b.methodURL("getFile"))
	if err != nil {
		return "", errors.Wrap(err, "getFile")
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var filePath string
	err = decodeResult(resp.Body(), func(d *jx.Decoder, key string) error {
		if key != "file_path" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		filePath = v
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "getFile: decode")
	}
	if filePath == "" {
		return "", &BotError{StatusCode: resp.StatusCode(), Description: "missing file_path"}
	}
	return filePath, nil
}

// FileURL builds the direct download URL for a path returned by
// GetFilePath.
func (b *Bot) FileURL(filePath string) string {
	return b.baseURL + "/file/bot" + b.token + "/" + filePath
}

// SendDocument uploads a document to a chat and returns the file_id
// Telegram assigned to it.
func (b *Bot) SendDocument(ctx context.Context, chatID, fileName string, body io.Reader, caption string) (string, error) {

	req := b.rest.R().
		SetContext(ctx).
		SetFileReader("document", fileName, body).
		SetFormData(map[string]string{"chat_id": chatID})
	if caption != "" {
		req.SetFormData(map[string]string{"caption": caption})
	}

	resp, err := req.Post(b.methodURL("sendDocument"))
	if err != nil {
		return "", errors.Wrap(err, "sendDocument")
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var fileID string
	err = decodeResult(resp.Body(), func(d *jx.Decoder, key string) error {
		if key != "document" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "file_id" {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			fileID = v
			return nil
		})
	})
	if err != nil {
		return "", errors.Wrap(err, "sendDocument: decode")
	}
	if fileID == "" {
		return "", &BotError{StatusCode: resp.StatusCode(), Description: "missing document.file_id"}
	}
	return fileID, nil
}

// checkResponse rejects non-2xx replies and ok=false envelopes,
// extracting the description Telegram supplies with failures.
func checkResponse(resp *resty.Response) error {

	ok := true
	description := ""

	d := jx.DecodeBytes(resp.Body())
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "ok":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			ok = v
			return nil
		case "description":
			v, err := d.Str()
			if err != nil {
				return err
			}
			description = v
			return nil
		default:
			return d.Skip()
		}
	})

	if resp.IsError() || !ok {
		return &BotError{StatusCode: resp.StatusCode(), Description: description}
	}
	return nil
}

// decodeResult walks the envelope's result object with fn.
func decodeResult(body []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(body)
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "result" {
			return d.Skip()
		}
		return d.Obj(fn)
	})
}

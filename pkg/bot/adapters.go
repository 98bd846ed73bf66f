package bot

import (
	"context"
	"fmt"

	"transrelay/pkg/collect"
	"transrelay/pkg/telegram"
)

// Outbox sends the collection machine's notices and reports.
type Outbox struct {
	API API
}

func (o Outbox) Notify(ctx context.Context, chatID, threadID int64, text string) error {
	_, err := o.API.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
	})
	return err
}

func (o Outbox) Deliver(ctx context.Context, chatID, threadID int64, filename string, data []byte, caption string) error {
	_, err := o.API.SendDocument(ctx, telegram.Upload{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Filename:        filename,
		Data:            data,
		Caption:         caption,
	})
	return err
}

// Fetcher downloads collected photos by file id.
type Fetcher struct {
	API API
}

func (f Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, err := f.API.FetchFile(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collect.ErrPayloadUnavailable, err)
	}
	return data, nil
}

package avatar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"officehours/backend/internal/domain"
)

// Dispatcher runs avatar generation in the background after a reply
// finishes streaming. The text turn never waits on video.
type Dispatcher struct {
	client   *Client
	messages domain.MessageRepository
}

// NewDispatcher creates a new avatar dispatcher
func NewDispatcher(client *Client, messages domain.MessageRepository) *Dispatcher {
	return &Dispatcher{client: client, messages: messages}
}

// Dispatch starts video generation for a finalized reply. It returns
// immediately; the video URL lands on the message row when the job
// completes. Failures are logged and the message keeps a null URL.
func (d *Dispatcher) Dispatch(messageID uuid.UUID, text string) {
	if text == "" {
		return
	}

	go func() {
		// Detached from the request: the stream is already closed by
		// the time video finishes rendering.
		ctx, cancel := context.WithTimeout(context.Background(), d.client.maxWait+30*time.Second)
		defer cancel()

		talk, err := d.client.CreateTalk(ctx, text)
		if err != nil {
			log.Warn().Err(err).Stringer("message_id", messageID).Msg("avatar job submission failed")
			return
		}

		url, err := d.client.WaitForDone(ctx, talk.ID)
		if err != nil {
			log.Warn().Err(err).Stringer("message_id", messageID).Msg("avatar generation failed")
			return
		}

		if err := d.messages.SetVideoURL(ctx, messageID, url); err != nil {
			log.Error().Err(err).Stringer("message_id", messageID).Msg("failed to store avatar video url")
			return
		}

		log.Info().Stringer("message_id", messageID).Msg("avatar video ready")
	}()
}

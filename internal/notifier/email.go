package notifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wneessen/go-mail"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
)

// Email tells an owner their mp3 is ready, over SMTP. Transient dial and
// send errors are retried a few times in place; anything still failing
// bubbles up so the queue's redelivery takes over.
type Email struct {
	client *mail.Client
	from   string
}

func NewEmail(cfg *config.SMTPConfig) (*Email, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Email{client: client, from: cfg.From}, nil
}

func (e *Email) Deliver(ctx context.Context, owner string, ref blobstore.ID) error {
	msg := mail.NewMsg()
	if err := msg.From(e.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(owner); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject("MP3 Download")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("mp3 %s is now ready!", ref))

	send := func() (struct{}, error) {
		return struct{}{}, e.client.DialAndSendWithContext(ctx, msg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, send,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", owner, err)
	}

	log.Printf("[notify] mail sent to %s", owner)
	return nil
}

package notification

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
)

// UseCase -.
type UseCase struct {
	sender infrastructure.NotificationSender
}

// New -.
func New(sender infrastructure.NotificationSender) *UseCase {
	return &UseCase{sender: sender}
}

func (uc *UseCase) Notify(ctx context.Context, snapshot entity.OrderSnapshot) error {
	to := snapshot.Recipient()
	if to == "" {
		return fmt.Errorf("NotificationUseCase - Notify - id=%s: %w", snapshot.ID, errs.ErrNoRecipient)
	}

	n, err := Render(snapshot)
	if err != nil {
		return fmt.Errorf("NotificationUseCase - Notify - Render: %w", err)
	}

	n.To = to

	err = uc.sender.Send(ctx, n)
	if err != nil {
		return fmt.Errorf("NotificationUseCase - Notify - uc.sender.Send: %w", err)
	}

	return nil
}

// Render builds the itemized order summary. The recipient is left empty.
func Render(snapshot entity.OrderSnapshot) (entity.Notification, error) {
	var subject, body bytes.Buffer

	if err := subjectTmpl.Execute(&subject, snapshot); err != nil {
		return entity.Notification{}, fmt.Errorf("Render - subjectTmpl.Execute: %w", err)
	}

	if err := bodyTmpl.Execute(&body, snapshot); err != nil {
		return entity.Notification{}, fmt.Errorf("Render - bodyTmpl.Execute: %w", err)
	}

	return entity.Notification{
		Subject: subject.String(),
		Body:    body.String(),
	}, nil
}

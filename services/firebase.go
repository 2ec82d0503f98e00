package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const pushIcon = "/icons/icon-192x192.png"

// NewFirebaseApp initialises the Admin SDK from a service account file.
func NewFirebaseApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}

// FirebasePushSender delivers web push notifications through FCM.
type FirebasePushSender struct {
	client *messaging.Client
}

func NewFirebasePushSender(ctx context.Context, app *firebase.App) (*FirebasePushSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FirebasePushSender{client: client}, nil
}

func (s *FirebasePushSender) Send(ctx context.Context, msg PushMessage) error {
	link := msg.Link
	if link == "" {
		link = "/"
	}
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Webpush: &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: link},
			Notification: &messaging.WebpushNotification{
				Icon: pushIcon,
			},
		},
	})
	return err
}

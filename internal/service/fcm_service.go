package service

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
	log    *slog.Logger
}

// NewFCMService creates an FCM service. Returns nil if Firebase is not configured;
// a nil service drops every push.
func NewFCMService(serviceAccountPath string, log *slog.Logger) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	ctx := context.Background()
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		log.Warn("firebase app init failed", "error", err)
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn("firebase messaging client failed", "error", err)
		return nil
	}
	return &FCMService{client: client, log: log}
}

// Send pushes one notification to a device token. Data values are converted
// to strings, which FCM requires.
func (s *FCMService) Send(ctx context.Context, token, kind, title, body string, data map[string]interface{}) error {
	if s == nil || token == "" {
		return nil
	}
	dataStr := map[string]string{"type": kind}
	for k, v := range data {
		switch val := v.(type) {
		case string:
			dataStr[k] = val
		default:
			dataStr[k] = fmt.Sprintf("%v", val)
		}
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  dataStr,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.log.Warn("fcm send failed", "kind", kind, "error", err)
		return err
	}
	return nil
}

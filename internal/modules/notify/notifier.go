// README: User notifications: FCM push per user topic, or zap log when messaging is off.
package notify

import (
	"context"
	"fmt"
	"regexp"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"pickleheart/internal/types"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notification struct {
	UserID types.ID
	Level  Level
	Title  string
	Body   string
	Data   map[string]string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// sender is the subset of *messaging.Client used here.
type sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCMNotifier publishes to the topic "user_<uid>" the app subscribes to on login.
type FCMNotifier struct {
	client sender
	log    *zap.Logger
}

func NewFCMNotifier(client *messaging.Client, log *zap.Logger) *FCMNotifier {
	return newFCMNotifier(client, log)
}

func newFCMNotifier(client sender, log *zap.Logger) *FCMNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &FCMNotifier{client: client, log: log}
}

var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\-_.~%]`)

// Topic returns the FCM topic for a user.
func Topic(userID types.ID) string {
	return "user_" + topicUnsafe.ReplaceAllString(string(userID), "_")
}

func (n *FCMNotifier) Notify(ctx context.Context, note Notification) error {
	if note.UserID == "" {
		return fmt.Errorf("notification without user")
	}
	data := map[string]string{"level": string(note.Level)}
	for k, v := range note.Data {
		data[k] = v
	}
	msg := &messaging.Message{
		Topic: Topic(note.UserID),
		Data:  data,
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := n.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM to user %s: %w", note.UserID, err)
	}
	n.log.Debug("FCM sent",
		zap.String("user_id", string(note.UserID)),
		zap.String("level", string(note.Level)),
		zap.String("message_id", messageID),
	)
	return nil
}

// LogNotifier only logs; used when Firebase messaging is disabled.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.log.Info("notification",
		zap.String("user_id", string(note.UserID)),
		zap.String("level", string(note.Level)),
		zap.String("title", note.Title),
		zap.String("body", note.Body),
	)
	return nil
}

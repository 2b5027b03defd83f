// Package sms defines the outbound SMS boundary.
package sms

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers one message to one recipient. to is a digits-only
// international number without the leading plus.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// LogSender writes messages to the log instead of sending them. Dev only.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(ctx context.Context, to, message string) error {
	_ = ctx
	log := s.Log
	if log == nil {
		log = zap.L()
	}
	log.Info("dev sms", zap.String("to", to), zap.String("message", message))
	return nil
}

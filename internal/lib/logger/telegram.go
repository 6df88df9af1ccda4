package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// Alerter delivers out-of-band notifications for serious log records.
type Alerter interface {
	SendMessage(msg string)
}

// telegramHandler wraps another slog handler and forwards records at or
// above minLevel to the alerter. Forwarding is asynchronous so a slow
// Telegram API never stalls the caller.
type telegramHandler struct {
	next     slog.Handler
	alerter  Alerter
	minLevel slog.Level
	attrs    []slog.Attr
}

// SetupTelegramHandler layers Telegram alerting on top of an existing logger.
func SetupTelegramHandler(log *slog.Logger, alerter Alerter, minLevel slog.Level) *slog.Logger {
	return slog.New(&telegramHandler{
		next:     log.Handler(),
		alerter:  alerter,
		minLevel: minLevel,
	})
}

func (h *telegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *telegramHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.minLevel {
		msg := fmt.Sprintf("[%s] %s", r.Level.String(), r.Message)
		for _, a := range h.attrs {
			msg += fmt.Sprintf("\n%s: %s", a.Key, a.Value.String())
		}
		r.Attrs(func(a slog.Attr) bool {
			msg += fmt.Sprintf("\n%s: %s", a.Key, a.Value.String())
			return true
		})
		go h.alerter.SendMessage(msg)
	}
	return h.next.Handle(ctx, r)
}

func (h *telegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &telegramHandler{
		next:     h.next.WithAttrs(attrs),
		alerter:  h.alerter,
		minLevel: h.minLevel,
		attrs:    merged,
	}
}

func (h *telegramHandler) WithGroup(name string) slog.Handler {
	return &telegramHandler{
		next:     h.next.WithGroup(name),
		alerter:  h.alerter,
		minLevel: h.minLevel,
		attrs:    h.attrs,
	}
}

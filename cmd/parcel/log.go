package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/parcel"
)

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type bridged struct {
	signal  capitan.Signal
	level   slog.Level
	message string
}

// bridgedSignals lists the events written to the log. Failures are logged
// by the command that receives the error, so only their timing is kept here.
var bridgedSignals = []bridged{
	{parcel.PutStarted, slog.LevelDebug, "Object write started"},
	{parcel.PutCompleted, slog.LevelDebug, "Object written"},
	{parcel.PutFailed, slog.LevelDebug, "Object write failed"},
	{parcel.GetCompleted, slog.LevelDebug, "Object fetched"},
	{parcel.DeleteCompleted, slog.LevelDebug, "Object deleted"},
	{parcel.PresignCompleted, slog.LevelDebug, "Signed URL generated"},
	{parcel.PublishStarted, slog.LevelDebug, "Publish started"},
	{parcel.PublishCompleted, slog.LevelInfo, "Published"},
	{parcel.PublishRejected, slog.LevelWarn, "Publish rejected"},
}

// bridgeEvents logs parcel events through logger until the returned flush
// function is called.
func bridgeEvents(logger *slog.Logger) func(context.Context) {
	flushes := make([]func(context.Context), 0, len(bridgedSignals))
	for _, b := range bridgedSignals {
		l := capitan.Hook(b.signal, func(ctx context.Context, e *capitan.Event) {
			logger.LogAttrs(ctx, b.level, b.message, eventAttrs(e.Fields())...)
		})
		flushes = append(flushes, func(ctx context.Context) {
			_ = l.Drain(ctx)
			l.Close()
		})
	}
	return func(ctx context.Context) {
		for _, f := range flushes {
			f(ctx)
		}
	}
}

func eventAttrs(fields []capitan.Field) []slog.Attr {
	var attrs []slog.Attr
	if v := parcel.FieldBucket.ExtractFromFields(fields); v != "" {
		attrs = append(attrs, slog.String("bucket", v))
	}
	if v := parcel.FieldPrefix.ExtractFromFields(fields); v != "" {
		attrs = append(attrs, slog.String("prefix", v))
	}
	if v := parcel.FieldKey.ExtractFromFields(fields); v != "" {
		attrs = append(attrs, slog.String("key", v))
	}
	if v := parcel.FieldPath.ExtractFromFields(fields); v != "" {
		attrs = append(attrs, slog.String("path", v))
	}
	if v := parcel.FieldSize.ExtractFromFields(fields); v != 0 {
		attrs = append(attrs, slog.Int64("size", v))
	}
	if v := parcel.FieldDuration.ExtractFromFields(fields); v != 0 {
		attrs = append(attrs, slog.Duration("duration", v))
	}
	return attrs
}

// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
)

type noticeSinkKey struct{}

// NoticeSink receives the messages emitted by points attached with
// ActionNotice while running under a context carrying it.
type NoticeSink func(msg string)

// WithNoticeSink returns a copy of ctx delivering notices to sink.
func WithNoticeSink(ctx context.Context, sink NoticeSink) context.Context {
	return context.WithValue(ctx, noticeSinkKey{}, sink)
}

func noticeSinkFrom(ctx context.Context) NoticeSink {
	sink, _ := ctx.Value(noticeSinkKey{}).(NoticeSink)
	return sink
}

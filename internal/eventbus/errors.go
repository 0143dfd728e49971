package eventbus

import "errors"

// ErrChannelFull is returned by Publish when the internal buffer is
// saturated; the event is dropped rather than blocking the publisher.
var ErrChannelFull = errors.New("eventbus: event channel full, event dropped")

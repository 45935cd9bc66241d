package broadcast

import (
	"fmt"
	"time"
)

// MessageExpiredError is returned for a message which has been evicted
// because its expiration instant passed.
type MessageExpiredError struct {
	ID      string
	Expired time.Time
}

func (e *MessageExpiredError) Error() string {
	return fmt.Sprintf("message %s expired at %s", e.ID, e.Expired.Format(time.RFC3339))
}

// MessageUnavailableError is returned for a message id which is
// referenced by a playlist but has not arrived (yet).
type MessageUnavailableError struct {
	ID string
}

func (e *MessageUnavailableError) Error() string {
	return fmt.Sprintf("message %s not available", e.ID)
}

// AudioDeviceError is returned when the audio sink failed to play a
// message.
type AudioDeviceError struct {
	ID  string
	Err error
}

func (e *AudioDeviceError) Error() string {
	return fmt.Sprintf("audio device failed playing message %s: %v", e.ID, e.Err)
}

func (e *AudioDeviceError) Unwrap() error {
	return e.Err
}

// ComposeError is returned when the audio of a message could not be
// assembled (unreadable file, conversion or tone generation failure).
type ComposeError struct {
	ID  string
	Err error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("unable to compose audio of message %s: %v", e.ID, e.Err)
}

func (e *ComposeError) Unwrap() error {
	return e.Err
}

// errorKind returns the metrics label of an error.
func errorKind(err error) string {
	switch err.(type) {
	case *MessageExpiredError:
		return "expired"
	case *MessageUnavailableError:
		return "unavailable"
	case *AudioDeviceError:
		return "device"
	case *ComposeError:
		return "compose"
	}
	return "other"
}

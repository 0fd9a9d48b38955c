package protocol

const (
	// Replay input.
	ErrInvalidInput   = "E_INVALID_INPUT"
	ErrSkippedEvent   = "E_SKIPPED_EVENT"
	ErrRejectedEntity = "E_REJECTED_ENTITY"

	// Playback transport.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrNotFound        = "E_NOT_FOUND"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrInvalidInput:    {},
	ErrSkippedEvent:    {},
	ErrRejectedEntity:  {},
	ErrProtoBadRequest: {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients, whether the
error travels in a REST envelope or as a websocket "error" event.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrProtocol indicates a malformed inbound websocket frame.
	ErrProtocol = 1101
)

// 2xxx: Room, Matching and Content Errors
const (
	// ErrRoomNotFound indicates that the requested durable room does not exist.
	ErrRoomNotFound = 2103

	// ErrMessageContentTooLong indicates that the user's message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrEmptyBody indicates a message body that is blank after trimming.
	ErrEmptyBody = 2202

	// ErrNotJoined indicates that the channel is not a member of any room.
	ErrNotJoined = 2203

	// ErrAlreadyJoined indicates that the channel is already bound to another room.
	ErrAlreadyJoined = 2204

	// ErrAlreadyWaiting indicates that the subject already holds a waiting ticket.
	ErrAlreadyWaiting = 2301

	// ErrNotMatched indicates a message sent while the channel is still waiting for a partner.
	ErrNotMatched = 2302

	// ErrSessionClosed indicates that the pair session has already been closed.
	ErrSessionClosed = 2303

	// ErrMatchTimeout indicates that a waiting ticket expired before a partner was found.
	ErrMatchTimeout = 2304
)

// 3xxx: Identity, Moderation and Channel Errors
const (
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = 3005

	// ErrSelfTarget indicates that a subject attempted to block or report itself.
	ErrSelfTarget = 3006

	// ErrInvalidReason indicates an unknown report reason code.
	ErrInvalidReason = 3101

	// ErrInvalidRoomKind indicates an unknown room kind attached to a report.
	ErrInvalidRoomKind = 3102

	// ErrChannelLost indicates that the target channel is gone.
	ErrChannelLost = 3201
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)

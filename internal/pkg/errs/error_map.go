/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, websocket error events and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrProtocol:             {Code: ErrProtocol, Message: "Malformed frame: %s."},

	// 2xxx: Room, Matching and Content Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Chat room not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrEmptyBody:             {Code: ErrEmptyBody, Message: "Message is empty."},
	ErrNotJoined:             {Code: ErrNotJoined, Message: "You are not in a chat room."},
	ErrAlreadyJoined:         {Code: ErrAlreadyJoined, Message: "This connection is already in a chat room."},
	ErrAlreadyWaiting:        {Code: ErrAlreadyWaiting, Message: "You are already waiting for a match. Cancel first."},
	ErrNotMatched:            {Code: ErrNotMatched, Message: "You have not been matched yet."},
	ErrSessionClosed:         {Code: ErrSessionClosed, Message: "This chat has ended."},
	ErrMatchTimeout:          {Code: ErrMatchTimeout, Message: "No partner was found in time. Please try again."},

	// 3xxx: Identity, Moderation and Channel Errors
	ErrUnauthorized:    {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSelfTarget:      {Code: ErrSelfTarget, Message: "You cannot do this to yourself.", Status: http.StatusBadRequest},
	ErrInvalidReason:   {Code: ErrInvalidReason, Message: "Invalid report reason.", Status: http.StatusBadRequest},
	ErrInvalidRoomKind: {Code: ErrInvalidRoomKind, Message: "Invalid room type.", Status: http.StatusBadRequest},
	ErrChannelLost:     {Code: ErrChannelLost, Message: "Connection closed."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

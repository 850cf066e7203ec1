// Package mmerrors defines the matchmaker's error taxonomy: the fixed
// client-surfaced error codes, MatchMakeError, and SeatReservationError.
package mmerrors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode is one of the fixed codes surfaced to clients.
type ErrorCode int

const (
	ErrMatchmakeNoHandler ErrorCode = iota + 4210
	ErrMatchmakeInvalidCriteria
	ErrMatchmakeInvalidRoomID
	ErrMatchmakeExpired
	ErrMatchmakeUnhandled
	ErrMatchmakeSeatReservation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrMatchmakeNoHandler:
		return "ERR_MATCHMAKE_NO_HANDLER"
	case ErrMatchmakeInvalidCriteria:
		return "ERR_MATCHMAKE_INVALID_CRITERIA"
	case ErrMatchmakeInvalidRoomID:
		return "ERR_MATCHMAKE_INVALID_ROOM_ID"
	case ErrMatchmakeExpired:
		return "ERR_MATCHMAKE_EXPIRED"
	case ErrMatchmakeUnhandled:
		return "ERR_MATCHMAKE_UNHANDLED"
	case ErrMatchmakeSeatReservation:
		return "ERR_MATCHMAKE_SEAT_RESERVATION"
	default:
		return "ERR_MATCHMAKE_UNKNOWN"
	}
}

// MatchMakeError is the user-surfaceable error raised on bad method,
// unknown handler, no matching room, locked/missing room, expired
// session, onCreate failure, or remote-room-call timeout.
type MatchMakeError struct {
	Code    ErrorCode
	Message string
}

func NewMatchMakeError(code ErrorCode, message string) *MatchMakeError {
	return &MatchMakeError{Code: code, Message: message}
}

func (e *MatchMakeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SeatReservationError is the only error JoinOrCreate retries on: it
// means someone else reserved the last seat first.
type SeatReservationError struct {
	Message string
}

func NewSeatReservationError(message string) *SeatReservationError {
	return &SeatReservationError{Message: message}
}

func (e *SeatReservationError) Error() string {
	return e.Message
}

// TimeoutError describes a request/reply round trip that exceeded its
// deadline. The ipc package reports its own timeouts with
// ipc.ErrTimeout rather than this type; the remote-room-call boundary
// translates ipc.ErrTimeout into a MatchMakeError with
// ErrMatchmakeUnhandled.
type TimeoutError struct {
	Channel string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request on %q timed out after %s", e.Channel, e.Timeout)
}

// ErrorResponse is the standardized JSON error shape RespondError
// writes for a MatchMakeError. The admin HTTP surface does not use it.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// RespondError writes a MatchMakeError as a standardized JSON response.
func RespondError(w http.ResponseWriter, httpStatus int, err *MatchMakeError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   err.Code.String(),
		Message: err.Message,
		Code:    int(err.Code),
	})
}

// RespondJSON sends a JSON response.
func RespondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

package core

// error_messages.go maps technical errors to coded messages for clients.
// Users quote the code to support; the technical error is only logged.
//
//	STU001 - Student not found           (ErrNotFound)
//	STU002 - Invalid student data        (ErrInvalidInput)
//	IMP001 - Unsupported file type       (ErrUnsupportedFile)
//	IMP002 - Unreadable spreadsheet      (ErrImport, "invalid csv")
//	IMP003 - No file provided            ("no file provided")
//	DB001  - Store unreachable           (docstore.ErrConnection, "connection refused")
//	DB002  - Store connection reset      ("connection reset")
//	DB003  - Store timeout               ("timeout", "server selection")
//	DB004  - Duplicate record            ("duplicate key")
//	CFG001 - Configuration unavailable   ("failed to load config")
//	UPL001 - System busy                 (ErrTooManyImports)
//	UPL002 - Request cancelled           (context.Canceled)
//	UPL003 - Request timed out           (context.DeadlineExceeded)
//	UPL004 - File too large              ("file too large")
//	RATE001 - Too many requests          ("rate limit")
//	ERR000 - Anything else
//
// Sentinel errors are checked with errors.Is first. Remaining errors are
// matched case-insensitively by substring; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/roster/internal/docstore"
)

// UserMessage is a client-safe description of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgNotFound = UserMessage{
		Message: "Student not found",
		Action:  "Check the student id and try again",
		Code:    "STU001",
	}
	msgInvalidInput = UserMessage{
		Message: "Invalid student data",
		Action:  "Send a JSON object with string fields",
		Code:    "STU002",
	}
	msgUnsupportedFile = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload an .xlsx or .csv file",
		Code:    "IMP001",
	}
	msgImport = UserMessage{
		Message: "The spreadsheet could not be read",
		Action:  "Check that the file is a valid workbook with a header row",
		Code:    "IMP002",
	}
	msgConnection = UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL003",
	}
)

// sentinelMessages are checked in order with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrNotFound, msgNotFound},
	{ErrInvalidInput, msgInvalidInput},
	{ErrUnsupportedFile, msgUnsupportedFile},
	{ErrImport, msgImport},
	{docstore.ErrConnection, msgConnection},
	{ErrTooManyImports, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgDeadline},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"invalid csv", msgImport},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a spreadsheet to upload",
		Code:    "IMP003",
	}},
	{"connection refused", msgConnection},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"server selection", UserMessage{
		Message: "Database did not respond in time",
		Action:  "Please try again later",
		Code:    "DB003",
	}},
	{"timeout", UserMessage{
		Message: "Database did not respond in time",
		Action:  "Please try again later",
		Code:    "DB003",
	}},
	{"duplicate key", UserMessage{
		Message: "A record with this id already exists",
		Action:  "Reload the list and try again",
		Code:    "DB004",
	}},
	{"failed to load config", UserMessage{
		Message: "Configuration is unavailable",
		Action:  "Please try again or contact support",
		Code:    "CFG001",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller parts",
		Code:    "UPL004",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. A nil error maps to the zero
// value; an unknown error maps to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

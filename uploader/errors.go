package uploader

import "errors"

var (
	ErrRateLimited       = errors.New("rate limited")
	ErrServiceNotReady   = errors.New("remote index is still loading")
	ErrNoFileSupplied    = errors.New("no file supplied")
	ErrBlockedExtension  = errors.New("file extension is blacklisted")
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrCleanupFailed     = errors.New("could not remove temporary file")
)

// Result labels reported to the Observer.
const (
	ResultSuccess           = "success"
	ResultRateLimited       = "rate_limited"
	ResultNotReady          = "not_ready"
	ResultBadRequest        = "bad_request"
	ResultInvalidToken      = "invalid_token"
	ResultAuthUnavailable   = "auth_unavailable"
	ResultNoFile            = "no_file"
	ResultBlockedExtension  = "blocked_extension"
	ResultNameExhausted     = "name_exhausted"
	ResultRemoteWriteFailed = "remote_write_failed"
	ResultTempFileFailed    = "temp_file_failed"
	ResultCleanupFailed     = "cleanup_failed"
)

const (
	msgRateLimited  = "Too many requests, please try again later."
	msgNotReady     = "System temporarily unavailable, please try again later. If this issue does not resolve itself in a few minutes, please contact your system administrator."
	msgBadForm      = "Could not receive multipart form."
	msgTempFile     = "Could not receive file, please try again."
	msgInvalidToken = "Invalid token."
	msgNoFile       = "No file was uploaded."
	msgBlocked      = "This file type is not allowed."
	msgNoName       = "Unable to get file name. Please try again."
	msgRemoteWrite  = "Unable to upload to remote storage."
)

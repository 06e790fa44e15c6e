package domain

import "errors"

// Sentinel errors for cover synthesis
var (
	// ErrNoUsableItems indicates no catalog item passed selection
	ErrNoUsableItems = errors.New("no usable items")

	// ErrNoImages indicates compositing was called without source images
	ErrNoImages = errors.New("no source images")

	// ErrFontParse indicates a font file could not be parsed
	ErrFontParse = errors.New("font file could not be parsed")

	// ErrResourceInvalid indicates a resource file failed signature validation
	ErrResourceInvalid = errors.New("resource failed validation")

	// ErrResourceUnavailable indicates every acquisition strategy failed and no cached copy exists
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrTransient indicates a retryable network failure
	ErrTransient = errors.New("transient network error")

	// ErrTitleConfig indicates the title mapping is malformed
	ErrTitleConfig = errors.New("invalid title configuration")

	// ErrPersist indicates the history store could not be written
	ErrPersist = errors.New("history persist failed")

	// ErrUnknownStyle indicates a style identifier outside the style table
	ErrUnknownStyle = errors.New("unknown cover style")

	// ErrUpToDate indicates the cover already reflects the newest source item
	ErrUpToDate = errors.New("cover is up to date")

	// ErrServerOffline indicates the media server is unreachable
	ErrServerOffline = errors.New("media server is unreachable")

	// ErrAuthFailed indicates authentication failed
	ErrAuthFailed = errors.New("authentication token is invalid")
)

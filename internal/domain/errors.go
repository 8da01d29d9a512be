package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNoBaseAsset      = errors.New("base image is required")
	ErrNoOutfits        = errors.New("at least one outfit image is required")
	ErrBatchRunning     = errors.New("a batch is already processing")
	ErrEmptyUpload      = errors.New("upload is empty")
	ErrUnsupportedMedia = errors.New("upload is not an image")
	ErrUploadTooLarge   = errors.New("upload exceeds size limit")
)

// ConfigurationError reports a missing required setting. It is raised before
// any network activity.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("API key is not configured. Please set the %s environment variable.", e.Setting)
}

// NoResultError reports an edit response that carried no image payload.
// Reason holds whatever the service said instead, when anything.
type NoResultError struct {
	Provider string
	Reason   string
}

func (e *NoResultError) Error() string {
	msg := "No image data found in the API response."
	if e.Provider != "" {
		msg = fmt.Sprintf("No image data found in the %s response.", e.Provider)
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	return msg
}

// ServiceError wraps a transport or service-reported failure while keeping
// the underlying message intact.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	msg := "unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return "Edit service error: " + msg
	}
	return fmt.Sprintf("%s API Error: %s", e.Provider, msg)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

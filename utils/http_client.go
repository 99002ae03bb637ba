package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for calls to other services.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

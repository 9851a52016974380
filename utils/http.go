package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared outbound client for sync workers.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

package cdp

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Discover resolves the browser's devtools websocket url from the HTTP
// endpoint on the remote debug port, retrying while the browser starts.
func Discover(port int, wait time.Duration) (string, error) {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = int(wait / time.Second)
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = time.Second

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/json/version", port))
	if err != nil {
		return "", fmt.Errorf("discover devtools endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read devtools version: %w", err)
	}
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &version); err != nil {
		return "", fmt.Errorf("parse devtools version: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("devtools endpoint reported no websocket url")
	}
	return version.WebSocketDebuggerURL, nil
}

// Attach discovers and connects in one call, falling back to the
// Disconnected client when the browser is unreachable.
func Attach(port int, wait time.Duration) Client {
	url, err := Discover(port, wait)
	if err != nil {
		return Disconnected{}
	}
	client, err := Connect(url)
	if err != nil {
		return Disconnected{}
	}
	return client
}

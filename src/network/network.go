package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"iot-observer/src/logger"
	"iot-observer/src/models"
)

type AsyncNetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	nm := &AsyncNetworkManager{
		Config: cfg,
		Logger: log,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
	}
	return nm
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (nm *AsyncNetworkManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	return nm.doWithRetry(func() (*http.Request, error) {
		return http.NewRequest("GET", reqUrl.String(), nil)
	})
}

// -----------------------------------------------------------------------------

// PostJSON performs a POST request with a JSON body, with retries.
func (nm *AsyncNetworkManager) PostJSON(urlStr string, body interface{}) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	return nm.doWithRetry(func() (*http.Request, error) {
		req, err := http.NewRequest("POST", urlStr, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// -----------------------------------------------------------------------------

// doWithRetry executes the request with exponential backoff. 4xx responses
// are not retried: the request will not get better on its own.
func (nm *AsyncNetworkManager) doWithRetry(build func() (*http.Request, error)) ([]byte, error) {
	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i*i) * time.Second) // Exponential backoff
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		if nm.Config.Network.UserAgent != "" {
			req.Header.Set("User-Agent", nm.Config.Network.UserAgent)
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("request rejected (status %d)", resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error (status %d)", resp.StatusCode)
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, lastErr)
			continue
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

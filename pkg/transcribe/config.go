package transcribe

import "net/http"

// config holds shared configuration for transcriber implementations.
type config struct {
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// Option configures a transcriber.
type Option func(*config)

// WithModel sets the model name. Empty keeps the provider default.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage hints the spoken language as an ISO-639-1 code.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

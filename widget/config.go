package widget

import (
	"time"

	"chatwidget/internal/cache"
)

// Theme holds the widget's color options. The core never interprets them; it
// hands them to the renderer untouched.
type Theme struct {
	PrimaryColor    string
	BackgroundColor string
	TextColor       string
}

// Position holds the bubble's offset from the viewport corner.
type Position struct {
	Bottom string
	Right  string
}

// Config is the full set of recognized widget options. Embedders usually
// start from DefaultConfig and override what they need; zero or empty fields
// are filled with defaults at construction, except booleans, which are taken
// as given.
type Config struct {
	// WebhookURL is required; there is no usable default.
	WebhookURL string

	AgentName     string
	CacheEnabled  bool
	CacheExpiry   time.Duration
	CacheCapacity int

	// AutoOpen asks the renderer to open the chat bubble on load. Like Theme
	// and Position, it is presentation state the core passes through.
	AutoOpen           bool
	ShowWelcomeMessage bool
	WelcomeMessages    []string
	SuggestedMessages  []string
	Theme              Theme
	Position           Position
}

// DefaultConfig returns the stock configuration with sensible defaults for
// everything but the webhook URL.
func DefaultConfig(webhookURL string) Config {
	return Config{
		WebhookURL:         webhookURL,
		AgentName:          "AI Assistant",
		CacheEnabled:       true,
		CacheExpiry:        cache.DefaultExpiry,
		CacheCapacity:      cache.DefaultCapacity,
		ShowWelcomeMessage: true,
		WelcomeMessages: []string{
			"👋 Hi! I am your AI assistant, how can I help you today?",
			"Feel free to ask me anything!",
		},
		SuggestedMessages: []string{
			"What can you help me with?",
			"Tell me about your services",
			"How does this work?",
		},
		Theme: Theme{
			PrimaryColor:    "#1a1a1a",
			BackgroundColor: "#ffffff",
			TextColor:       "#374151",
		},
		Position: Position{
			Bottom: "20px",
			Right:  "20px",
		},
	}
}

func (c *Config) applyDefaults() {
	if c.AgentName == "" {
		c.AgentName = "AI Assistant"
	}
	if c.CacheExpiry <= 0 {
		c.CacheExpiry = cache.DefaultExpiry
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = cache.DefaultCapacity
	}
}

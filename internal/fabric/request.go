package fabric

import (
	"fabricmcp/internal/validation"
)

// Fallback values used when neither the caller nor the Fabric environment
// supplies them.
const (
	DefaultModel            = "gpt-4o"
	DefaultVendor           = "openai"
	DefaultLanguage         = "en"
	DefaultTemperature      = 0.7
	DefaultTopP             = 0.9
	DefaultPresencePenalty  = 0.0
	DefaultFrequencyPenalty = 0.0
)

// DefaultsProvider supplies the default model and vendor configured for the
// local Fabric installation. Empty strings mean "not configured".
type DefaultsProvider interface {
	Defaults() (model, vendor string)
}

// DefaultsFunc adapts a plain function to DefaultsProvider.
type DefaultsFunc func() (model, vendor string)

func (f DefaultsFunc) Defaults() (string, string) { return f() }

// PatternConfig carries optional per-invocation overrides. Nil or empty
// fields fall back to environment defaults and then to package defaults.
type PatternConfig struct {
	ModelName        string   `json:"model_name,omitempty"`
	VendorName       string   `json:"vendor_name,omitempty"`
	StrategyName     string   `json:"strategy_name,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// Validate checks sampling parameters against the ranges Fabric accepts.
func (c *PatternConfig) Validate() error {
	if c == nil {
		return nil
	}
	checks := []struct {
		field    string
		value    *float64
		min, max float64
	}{
		{"temperature", c.Temperature, 0, 2},
		{"top_p", c.TopP, 0, 1},
		{"presence_penalty", c.PresencePenalty, -2, 2},
		{"frequency_penalty", c.FrequencyPenalty, -2, 2},
	}
	for _, chk := range checks {
		if err := validation.Range(chk.value, chk.min, chk.max); err != nil {
			return &ValidationError{Field: chk.field, Message: err.Error()}
		}
	}
	return nil
}

// PromptRequest is a single prompt entry of a chat request.
type PromptRequest struct {
	PatternName  string            `json:"patternName"`
	UserInput    string            `json:"userInput"`
	Model        string            `json:"model"`
	Vendor       string            `json:"vendor"`
	StrategyName string            `json:"strategyName,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	Attachments  []string          `json:"attachments,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Prompts          []PromptRequest `json:"prompts"`
	Language         string          `json:"language"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"topP"`
	PresencePenalty  float64         `json:"presencePenalty"`
	FrequencyPenalty float64         `json:"frequencyPenalty"`
}

// Prompt returns the first prompt of the request, which is the only one the
// builder produces.
func (r *ChatRequest) Prompt() PromptRequest {
	if len(r.Prompts) == 0 {
		return PromptRequest{}
	}
	return r.Prompts[0]
}

type requestOptions struct {
	defaults    DefaultsProvider
	variables   map[string]string
	attachments []string
}

// RequestOption customizes BuildChatRequest.
type RequestOption func(*requestOptions)

// WithDefaults sets the provider consulted for model and vendor defaults.
func WithDefaults(p DefaultsProvider) RequestOption {
	return func(o *requestOptions) { o.defaults = p }
}

// WithVariables sets pattern variables substituted by Fabric.
func WithVariables(vars map[string]string) RequestOption {
	return func(o *requestOptions) { o.variables = vars }
}

// WithAttachments sets attachment references (paths or URLs) for the prompt.
func WithAttachments(attachments []string) RequestOption {
	return func(o *requestOptions) { o.attachments = attachments }
}

// CheckPatternName returns the trimmed pattern name, or a *ValidationError
// when it is empty or not usable as a path segment.
func CheckPatternName(name string) (string, error) {
	trimmed, err := validation.PatternName(name)
	if err != nil {
		return "", &ValidationError{Field: "pattern_name", Message: err.Error()}
	}
	return trimmed, nil
}

// BuildChatRequest resolves a pattern invocation into the payload sent to
// POST /chat.
//
// Model and vendor are resolved independently: an explicit config value wins,
// then the default reported by the DefaultsProvider, then DefaultModel and
// DefaultVendor. The provider is consulted on every call.
func BuildChatRequest(patternName, userInput string, cfg *PatternConfig, opts ...RequestOption) (*ChatRequest, error) {
	name, err := CheckPatternName(patternName)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	var envModel, envVendor string
	if o.defaults != nil {
		envModel, envVendor = o.defaults.Defaults()
	}
	if cfg == nil {
		cfg = &PatternConfig{}
	}

	return &ChatRequest{
		Prompts: []PromptRequest{{
			PatternName:  name,
			UserInput:    userInput,
			Model:        firstNonEmpty(cfg.ModelName, envModel, DefaultModel),
			Vendor:       firstNonEmpty(cfg.VendorName, envVendor, DefaultVendor),
			StrategyName: cfg.StrategyName,
			Variables:    o.variables,
			Attachments:  o.attachments,
		}},
		Language:         DefaultLanguage,
		Temperature:      floatOr(cfg.Temperature, DefaultTemperature),
		TopP:             floatOr(cfg.TopP, DefaultTopP),
		PresencePenalty:  floatOr(cfg.PresencePenalty, DefaultPresencePenalty),
		FrequencyPenalty: floatOr(cfg.FrequencyPenalty, DefaultFrequencyPenalty),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

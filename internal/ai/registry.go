package ai

import "github.com/sirupsen/logrus"

// Providers lists the valid models per provider. The first model in each list
// is that provider's default.
var Providers = map[string][]string{
	"openai":    {"gpt-4o", "gpt-4o-mini", "gpt-5.2"},
	"anthropic": {"claude-sonnet-4-6", "claude-opus-4-6", "claude-opus-4-5-20250918"},
}

const (
	DefaultProvider = "openai"
	DefaultModel    = "gpt-4o"

	// evalModel is the cheap model used for evaluation, intent confirmation
	// and the other utility calls, regardless of the configured provider.
	evalModel = "gpt-4o-mini"
)

// ResolveModel validates a (provider, model) pair against the registry. An
// unknown provider falls back to openai; a model that doesn't belong to the
// provider falls back to the provider's first model.
func ResolveModel(provider, model string, log *logrus.Logger) (string, string) {
	models, ok := Providers[provider]
	if !ok {
		log.Warnf("Unknown AI provider '%s', falling back to %s", provider, DefaultProvider)
		provider = DefaultProvider
		models = Providers[provider]
	}
	valid := false
	for _, m := range models {
		if m == model {
			valid = true
			break
		}
	}
	if !valid {
		log.Warnf("Model '%s' not valid for %s, using default", model, provider)
		model = models[0]
	}
	return provider, model
}

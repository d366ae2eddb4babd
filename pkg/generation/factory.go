package generation

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/ident"
)

// New builds the Service selected by cfg.Provider.
func New(log logrus.FieldLogger, cfg config.GenerationConfig, ids ident.Generator) (Service, error) {
	var client LLMClient

	switch cfg.Provider {
	case config.ProviderNone, "":
		log.Info("Generation provider disabled, using offline templates")

		return Offline(), nil
	case config.ProviderBedrock:
		client = NewBedrockClient(log, cfg.Bedrock, http.DefaultClient)
	case config.ProviderOpenAI:
		client = NewOpenAIClient(log, cfg.OpenAI)
	case config.ProviderGemini:
		client = NewGeminiClient(log, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	log.WithField("provider", client.Name()).Info("Generation provider configured")

	return NewService(log, client, ids), nil
}

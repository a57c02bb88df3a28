package providers

import (
	"fmt"
	"time"

	"github.com/corpusgraph/ingestor/internal/config"
	"github.com/corpusgraph/ingestor/internal/embedding"
)

// New selects the configured provider kind (§6.2: "openai" | "onprem" |
// "local"). Swapping kinds mid-project is expected: the Service detects it
// via the persisted provider/model properties on the next reparse, not
// here.
func New(cfg config.EmbeddingProvider) (embedding.Provider, error) {
	switch cfg.Kind {
	case "openai", "":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions), nil
	case "onprem":
		return NewOnPrem(cfg.BaseURL, cfg.Model, cfg.Dimensions, 30*time.Second), nil
	case "local":
		return NewLocal(cfg.BaseURL, cfg.Model, cfg.Dimensions, 30*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider kind %q", cfg.Kind)
	}
}

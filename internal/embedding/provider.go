package embedding

import "context"

// Provider is the batch embedding collaborator (§4.14, §6.2). Every
// implementation embeds a batch of texts in one round trip and reports the
// model identity it used, since that identity is persisted alongside the
// vector so a provider/model switch is detectable on the next reparse.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Model() string
	Dimensions() int
}

package chat

import (
	"github.com/recall-ai/cli/internal/domain"
)

// Model identifies one selectable generation model at the gateway.
type Model struct {
	ID       string
	Name     string
	Provider string
}

// DefaultModel is used when a chat turn does not select a model.
const DefaultModel = "mistral/mistral-nemo"

// AvailableModels is the fixed registry of selectable model ids.
var AvailableModels = []Model{
	{ID: "mistral/mistral-nemo", Name: "Mistral Nemo", Provider: "Mistral"},
	{ID: "mistral/ministral-3b", Name: "Ministral 3B", Provider: "Mistral"},
	{ID: "mistral/ministral-8b", Name: "Ministral 8B", Provider: "Mistral"},
	{ID: "meta/llama-3.1-8b", Name: "Llama 3.1 8B", Provider: "Meta"},
	{ID: "meta/llama-3.2-1b", Name: "Llama 3.2 1B", Provider: "Meta"},
	{ID: "amazon/nova-micro", Name: "Nova Micro", Provider: "Amazon"},
	{ID: "nvidia/nemotron-3-nano-30b-a3b", Name: "Nemotron 3 Nano", Provider: "NVIDIA"},
	{ID: "google/gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", Provider: "Google"},
	{ID: "openai/gpt-5-nano", Name: "GPT-5 Nano", Provider: "OpenAI"},
}

// ResolveModel maps a requested model id to a registry entry. An empty id
// resolves to the default; an id outside the registry is rejected.
func ResolveModel(id string) (string, error) {
	if id == "" {
		return DefaultModel, nil
	}
	for _, m := range AvailableModels {
		if m.ID == id {
			return m.ID, nil
		}
	}
	return "", domain.ErrUnknownModel
}

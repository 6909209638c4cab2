package parser

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, apiKey string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (g *geminiBackend) Generate(ctx context.Context, model, text string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(text), generateConfig())
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return resp.Text(), nil
}

func generateConfig() *genai.GenerateContentConfig {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":          str("The company or person name."),
				"bank":          str("The bank name including the branch."),
				"bankCode":      str("The bank and branch code."),
				"accountNumber": str("The bank account number."),
				"taxId":         str("The Tax ID (統一編號), if present."),
				"address":       str("The address, if present."),
				"remarks":       str("Any remarks, if present."),
			},
			Required: []string{"name", "bank", "bankCode", "accountNumber"},
		},
	}
}

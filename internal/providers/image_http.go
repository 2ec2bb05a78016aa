package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPImageEmbedder posts base64 images to a CLIP-style embedding service:
// {"images": ["<b64>", ...]} -> {"embeddings": [[...], ...]}.
type HTTPImageEmbedder struct {
	url    string
	client *http.Client
}

func NewHTTPImageEmbedder(url string, timeout time.Duration) *HTTPImageEmbedder {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPImageEmbedder{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPImageEmbedder) EmbedImages(ctx context.Context, req ImageEmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "http-image", Model: h.url}
	encoded := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
	}
	payload, _ := json.Marshal(map[string]any{"images": encoded})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, info, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, info, fmt.Errorf("image embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, fmt.Errorf("image embedding error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode image embedding response: %w", err)
	}
	if len(parsed.Embeddings) != len(req.Images) {
		return nil, info, fmt.Errorf("image embedder returned %d vectors for %d images", len(parsed.Embeddings), len(req.Images))
	}
	for i := range parsed.Embeddings {
		parsed.Embeddings[i] = matchDimension(parsed.Embeddings[i], req.Dimension)
	}
	return parsed.Embeddings, info, nil
}

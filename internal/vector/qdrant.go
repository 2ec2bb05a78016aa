package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"citegraph/internal/logger"

	"github.com/google/uuid"
)

const (
	qdrantBackend     = "qdrant"
	maxErrorBodyBytes = 1024
	upsertBatchSize   = 256
)

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Qdrant talks to Qdrant's REST API.
type Qdrant struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload Payload         `json:"payload"`
}

func NewQdrant(log *logger.Logger, cfg QdrantConfig) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &ConfigError{Field: "qdrant_url", Message: "is required"}
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, &ConfigError{Field: "qdrant_url", Message: err.Error()}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Qdrant{
		log:     log.With("service", "QdrantVectorStore"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func collectionPath(name, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}

func (q *Qdrant) EnsureCollection(ctx context.Context, name string, textDim, imageDim int) error {
	const op = "ensure_collection"
	if textDim <= 0 || imageDim <= 0 {
		return opErr(qdrantBackend, op, OperationErrorValidation, fmt.Sprintf("vector sizes must be positive (text=%d image=%d)", textDim, imageDim), nil)
	}

	var info struct {
		Config struct {
			Params struct {
				Vectors map[string]struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, collectionPath(name, ""), nil, &info)
	if err == nil {
		for space, want := range map[string]int{SpaceText: textDim, SpaceImage: imageDim} {
			got, ok := info.Config.Params.Vectors[space]
			if !ok {
				return opErr(qdrantBackend, op, OperationErrorValidation, fmt.Sprintf("collection %q has no %q vector space", name, space), nil)
			}
			if got.Size != want {
				return opErr(qdrantBackend, op, OperationErrorValidation,
					fmt.Sprintf("collection %q %s size mismatch: expected=%d actual=%d", name, space, want, got.Size), nil)
			}
		}
		return nil
	}
	if statusOf(err) != http.StatusNotFound {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{
			SpaceText:  map[string]any{"size": textDim, "distance": "Cosine"},
			SpaceImage: map[string]any{"size": imageDim, "distance": "Cosine"},
		},
	}
	if err := q.doJSON(ctx, op, http.MethodPut, collectionPath(name, ""), create, nil); err != nil {
		// A concurrent caller created it first.
		if statusOf(err) == http.StatusConflict {
			return nil
		}
		return err
	}
	for _, field := range []string{"paper_id", "chunk_type"} {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := q.doJSON(ctx, op, http.MethodPut, collectionPath(name, "/index?wait=true"), idx, nil); err != nil {
			q.log.Warn("payload index creation failed", "collection", name, "field", field, "error", err)
		}
	}
	q.log.Info("created qdrant collection", "collection", name, "text_dim", textDim, "image_dim", imageDim)
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection, paperID string, textPoints, imagePoints []Point) error {
	const op = "upsert"
	points := make([]map[string]any, 0, len(textPoints)+len(imagePoints))
	add := func(space string, pts []Point) error {
		for _, p := range pts {
			if len(p.Vector) == 0 {
				return opErr(qdrantBackend, op, OperationErrorValidation, fmt.Sprintf("%s point for %s has an empty vector", space, paperID), nil)
			}
			id := p.ID
			if id == "" {
				id = uuid.NewString()
			}
			points = append(points, map[string]any{
				"id":      id,
				"vector":  map[string][]float32{space: p.Vector},
				"payload": p.Payload,
			})
		}
		return nil
	}
	if err := add(SpaceText, textPoints); err != nil {
		return err
	}
	if err := add(SpaceImage, imagePoints); err != nil {
		return err
	}
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		req := map[string]any{"points": points[start:end]}
		if err := q.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	const op = "search"
	if len(req.Vector) == 0 {
		return nil, opErr(qdrantBackend, op, OperationErrorValidation, "query vector is empty", nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	body := map[string]any{
		"vector":       map[string]any{"name": spaceOrDefault(req.Space), "vector": req.Vector},
		"limit":        limit,
		"with_payload": true,
	}
	if f := qdrantFilter(req.PaperID, req.ChunkType); f != nil {
		body["filter"] = f
	}
	var items []qdrantSearchItem
	if err := q.doJSON(ctx, op, http.MethodPost, collectionPath(req.Collection, "/points/search"), body, &items); err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(items))
	for _, it := range items {
		out = append(out, Hit{ID: decodePointID(it.ID), Score: it.Score, Payload: it.Payload})
	}
	return out, nil
}

func (q *Qdrant) DeletePaper(ctx context.Context, collection, paperID string) error {
	body := map[string]any{"filter": qdrantFilter(paperID, "")}
	return q.doJSON(ctx, "delete_paper", http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), body, nil)
}

func qdrantFilter(paperID, chunkType string) map[string]any {
	must := make([]map[string]any, 0, 2)
	if paperID != "" {
		must = append(must, map[string]any{"key": "paper_id", "match": map[string]any{"value": paperID}})
	}
	if chunkType != "" {
		must = append(must, map[string]any{"key": "chunk_type", "match": map[string]any{"value": chunkType}})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (q *Qdrant) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(qdrantBackend, op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(qdrantBackend, op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(qdrantBackend, op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(qdrantBackend, op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Backend:    qdrantBackend,
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(qdrantBackend, op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := parseEnvelopeStatus(envelope.Status); msg != "" {
		return &OperationError{Backend: qdrantBackend, Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(qdrantBackend, op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func statusOf(err error) int {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	return 0
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func decodePointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}

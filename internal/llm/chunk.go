package llm

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errInvalidChunk = errors.New("invalid stream chunk")

// ParseChunk decodes one raw stream payload. Missing fields are tolerated:
// a chunk without choices or a choice without a delta is still valid.
func ParseChunk(data []byte) (Chunk, error) {
	if !gjson.ValidBytes(data) {
		return Chunk{}, fmt.Errorf("%w: %.64q", errInvalidChunk, data)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Chunk{}, fmt.Errorf("%w: not an object", errInvalidChunk)
	}
	if apiErr := root.Get("error"); apiErr.IsObject() {
		return Chunk{}, vendorError(0, apiErr)
	}

	chunk := Chunk{
		ID:    root.Get("id").String(),
		Model: root.Get("model").String(),
	}
	for _, raw := range root.Get("choices").Array() {
		choice := Choice{
			Index:        int(raw.Get("index").Int()),
			FinishReason: raw.Get("finish_reason").String(),
		}
		if delta := raw.Get("delta"); delta.IsObject() {
			choice.Delta = &Delta{
				Role:    delta.Get("role").String(),
				Content: delta.Get("content").String(),
			}
		}
		chunk.Choices = append(chunk.Choices, choice)
	}
	return chunk, nil
}

// ChunkFromMap normalizes a loosely-typed chunk, as produced by decoding a
// payload into map[string]any. Fields of unexpected types are treated as absent.
func ChunkFromMap(m map[string]any) Chunk {
	chunk := Chunk{
		ID:    stringField(m, "id"),
		Model: stringField(m, "model"),
	}
	for _, raw := range listField(m, "choices") {
		fields, ok := raw.(map[string]any)
		if !ok {
			chunk.Choices = append(chunk.Choices, Choice{})
			continue
		}
		choice := Choice{FinishReason: stringField(fields, "finish_reason")}
		if index, ok := fields["index"].(float64); ok {
			choice.Index = int(index)
		}
		if delta, ok := fields["delta"].(map[string]any); ok {
			choice.Delta = &Delta{
				Role:    stringField(delta, "role"),
				Content: stringField(delta, "content"),
			}
		}
		chunk.Choices = append(chunk.Choices, choice)
	}
	return chunk
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)
	return value
}

func listField(m map[string]any, key string) []any {
	switch value := m[key].(type) {
	case []any:
		return value
	case []map[string]any:
		out := make([]any, 0, len(value))
		for _, item := range value {
			out = append(out, item)
		}
		return out
	default:
		return nil
	}
}

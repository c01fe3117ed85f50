//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXEmbedder is unavailable without cgo; see onnx.go.
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without cgo.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Embed is never reachable since the constructor always fails.
func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("ONNX embedder unavailable")
}

// Close is a no-op.
func (e *ONNXEmbedder) Close() error { return nil }

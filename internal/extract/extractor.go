// Package extract provides text extraction from various document formats,
// dispatched through an extension registry resolved at startup.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Handler extracts plain text from file content. Handlers that shell out to
// path-based libraries may require a non-empty path.
type Handler func(path string, content []byte) (string, error)

// Registry maps lower-case file extensions (with leading dot) to handlers.
// Register all handlers during startup; lookups after that are read-only.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with the built-in format handlers.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register(".pdf", fromBytes(extractPDF))
	r.Register(".docx", fromBytes(extractDOCX))
	r.Register(".xlsx", fromBytes(extractExcel))
	r.Register(".pptx", fromBytes(extractPPTX))
	r.Register(".odp", fromBytes(extractODP))
	r.Register(".ods", fromBytes(extractODS))
	r.Register(".odt", extractWithCat)
	r.Register(".rtf", extractWithCat)
	for _, ext := range []string{".txt", ".md", ".rst", ".log", ".csv"} {
		r.Register(ext, fromBytes(extractPlain))
	}
	return r
}

// Register binds ext to handler, replacing any previous binding. Not safe for
// concurrent use; call during startup only.
func (r *Registry) Register(ext string, handler Handler) {
	r.handlers[strings.ToLower(ext)] = handler
}

// Supported reports whether ext has a registered handler.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.handlers[strings.ToLower(ext)]
	return ok
}

// Extensions returns the registered extensions sorted alphabetically.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and returns its text content.
func (r *Registry) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return r.extract(path, strings.ToLower(filepath.Ext(path)), content)
}

// ExtractBytes extracts text from content based on ext (including the leading
// dot). Path-based handlers fail without a real file; use Extract for those.
func (r *Registry) ExtractBytes(ext string, content []byte) (string, error) {
	return r.extract("", strings.ToLower(ext), content)
}

func (r *Registry) extract(path, ext string, content []byte) (string, error) {
	if handler, ok := r.handlers[ext]; ok {
		return handler(path, content)
	}
	// Unknown extension: treat as plain text.
	return extractPlain(content)
}

// fromBytes adapts a content-only extractor to the Handler signature.
func fromBytes(fn func(content []byte) (string, error)) Handler {
	return func(_ string, content []byte) (string, error) {
		return fn(content)
	}
}

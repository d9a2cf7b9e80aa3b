// Package tokenizer estimates token counts for rendered context.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/temirov/contree/internal/types"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

const (
	defaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

var errNilEncoding = errors.New("nil tiktoken encoder")

// NewCounter returns a tiktoken counter for model together with the name the
// counts should be reported under. Models tiktoken does not know fall back
// to the cl100k_base encoding.
func NewCounter(model string) (Counter, string, error) {
	resolvedModel := strings.TrimSpace(model)
	if resolvedModel == "" {
		resolvedModel = defaultModel
	}
	encoding, encodingError := tiktoken.EncodingForModel(strings.ToLower(resolvedModel))
	if encodingError == nil && encoding != nil {
		return tiktokenCounter{encoding: encoding, name: resolvedModel}, resolvedModel, nil
	}
	fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
	}
	return tiktokenCounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter tiktokenCounter) Name() string {
	return counter.name
}

func (counter tiktokenCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errNilEncoding
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}

// CountEntry counts the tokens of a file entry. Binary entries are not counted.
func CountEntry(counter Counter, entry types.FileEntry) (int, bool, error) {
	if counter == nil || entry.IsBinary {
		return 0, false, nil
	}
	tokens, err := counter.CountString(entry.Content)
	if err != nil {
		return 0, false, fmt.Errorf("count tokens for %s: %w", entry.Path, err)
	}
	return tokens, true, nil
}

package utils

import (
	"os"
	"unicode/utf8"
)

// IsBinary reports whether the provided byte slice appears to contain binary data.
// Content that is not valid UTF-8 or that carries a NUL byte is treated as binary.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if !utf8.Valid(data) {
		return true
	}
	for _, byteValue := range data {
		if byteValue == 0 {
			return true
		}
	}
	return false
}

// TextFile is the outcome of reading a file for rendering.
type TextFile struct {
	Content   string
	IsBinary  bool
	SizeBytes int64
}

// ReadTextFile reads path and classifies its content. Binary files are
// returned with an empty Content and IsBinary set.
//
// #nosec G304
func ReadTextFile(path string) (TextFile, error) {
	fileBytes, readError := os.ReadFile(path)
	if readError != nil {
		return TextFile{}, readError
	}
	if IsBinary(fileBytes) {
		return TextFile{IsBinary: true, SizeBytes: int64(len(fileBytes))}, nil
	}
	return TextFile{Content: string(fileBytes), SizeBytes: int64(len(fileBytes))}, nil
}

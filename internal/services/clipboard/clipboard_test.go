package clipboard

import (
	"errors"
	"testing"
)

func TestServiceCopy(t *testing.T) {
	writeFailure := errors.New("xclip missing")
	testCases := []struct {
		name        string
		service     *Service
		expectedErr error
	}{
		{name: "unsupported", service: &Service{unsupported: true}, expectedErr: ErrUnsupported},
		{name: "write failure", service: &Service{write: func(string) error { return writeFailure }}, expectedErr: writeFailure},
		{name: "success", service: &Service{write: func(string) error { return nil }}},
	}
	for _, testCase := range testCases {
		err := testCase.service.Copy("context")
		if testCase.expectedErr == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", testCase.name, err)
			}
			continue
		}
		if !errors.Is(err, testCase.expectedErr) {
			t.Errorf("%s: expected %v, got %v", testCase.name, testCase.expectedErr, err)
		}
	}
}

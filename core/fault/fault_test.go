package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	err := NotFound("Movie", "m1")
	wrapped := fmt.Errorf("load record: %w", err)

	if !IsNotFound(wrapped) {
		t.Error("code should survive error wrapping")
	}
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want %q", got, CodeNotFound)
	}
}

func TestPlainErrorsHaveNoCode(t *testing.T) {
	err := errors.New("boom")
	if CodeOf(err) != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", CodeOf(err))
	}
	if IsNotFound(err) || IsValidation(err) {
		t.Error("plain errors must not match any code")
	}
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) should be empty")
	}
}

func TestVersionMismatchCode(t *testing.T) {
	err := VersionMismatch(1, 2)
	if !IsVersionMismatch(err) {
		t.Errorf("error = %v", err)
	}
	if err.Code != "COMPONENT_CLIENT_VERSION_DOES_NOT_MATCH_COMPONENT_SERVER_VERSION" {
		t.Errorf("code = %q", err.Code)
	}
}

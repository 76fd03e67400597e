package pv

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorsSupportAs(t *testing.T) {
	wrapped := fmt.Errorf("load points: %w", &IncompleteMetadeviceError{DeviceID: "M-0001", Missing: []string{"M-0001-J2"}})
	if !IsIncomplete(wrapped) {
		t.Fatal("expected incomplete metadevice error through wrap")
	}

	var input *InputError
	err := fmt.Errorf("daily: %w", NewInputError("P-0001", InputRawData, fs.ErrNotExist))
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if input.Category != InputRawData || input.DeviceID != "P-0001" {
		t.Fatalf("unexpected input error fields: %+v", input)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("expected InputError to unwrap to the cause")
	}

	missing := NewInputError("P-0001", InputSiteMetadata, nil)
	if got := missing.Error(); got != "device P-0001: site-metadata input missing" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestNoValidDataErrorMessage(t *testing.T) {
	err := &NoValidDataError{DeviceID: "P-0002"}
	if err.Error() != "device P-0002 has no valid daily data" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

package renderer

import (
	"errors"
	"testing"
)

func TestImageDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    ImageDescriptor
		wantErr bool
	}{
		{"normal target", ImageDescriptor{Label: "n", Width: 8, Height: 8, Format: FormatRGBA16Float, Usage: UsageRenderTarget | UsageSampled}, false},
		{"depth", ImageDescriptor{Label: "d", Width: 8, Height: 8, Format: FormatDepth32Float, Usage: UsageDepth | UsageSampled}, false},
		{"zero width", ImageDescriptor{Label: "z", Width: 0, Height: 8, Format: FormatR32Float, Usage: UsageSampled}, true},
		{"unknown format", ImageDescriptor{Label: "f", Width: 8, Height: 8, Format: Format(9), Usage: UsageSampled}, true},
		{"depth usage on colour format", ImageDescriptor{Label: "c", Width: 8, Height: 8, Format: FormatR32Float, Usage: UsageDepth}, true},
		{"depth format without depth usage", ImageDescriptor{Label: "e", Width: 8, Height: 8, Format: FormatDepth32Float, Usage: UsageSampled}, true},
		{"no usage", ImageDescriptor{Label: "u", Width: 8, Height: 8, Format: FormatR32Float}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("validate() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestSharedImageRefCount(t *testing.T) {
	released := 0
	img := testImage("depth", UsageDepth|UsageSampled)
	img.release = func() { released++ }

	s := NewSharedImage(img)
	s.Retain().Retain()
	if s.RefCount() != 3 {
		t.Fatalf("RefCount() = %d, want 3", s.RefCount())
	}
	s.Release()
	s.Release()
	if released != 0 {
		t.Fatal("image released while references remain")
	}
	s.Release()
	s.Release()
	if released != 1 || s.RefCount() != 0 {
		t.Errorf("released = %d, RefCount() = %d, want 1 and 0", released, s.RefCount())
	}
}

func TestFormatBytesPerTexel(t *testing.T) {
	tests := []struct {
		format   Format
		bytes    int
		channels int
	}{
		{FormatRGBA16Float, 8, 4},
		{FormatDepth32Float, 4, 1},
		{FormatR32Float, 4, 1},
		{FormatRGBA8Unorm, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BytesPerTexel(); got != tt.bytes {
				t.Errorf("BytesPerTexel() = %d, want %d", got, tt.bytes)
			}
			if got := tt.format.Channels(); got != tt.channels {
				t.Errorf("Channels() = %d, want %d", got, tt.channels)
			}
		})
	}
}

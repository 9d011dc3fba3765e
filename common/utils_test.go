package common

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size, alignment, want int
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{496, 256, 512},
		{144, 16, 144},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.size, tt.alignment); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.size, tt.alignment, got, tt.want)
		}
	}
}

func TestCoalesceAndClamp(t *testing.T) {
	if got := Coalesce("", "", "label", "other"); got != "label" {
		t.Errorf("Coalesce = %q", got)
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce of zeros = %d", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Errorf("Clamp(-3) = %d", got)
	}
	if got := Saturate(1.5); got != 1 {
		t.Errorf("Saturate(1.5) = %v", got)
	}
}

func TestFloatImage(t *testing.T) {
	f := &FloatImage{Width: 2, Height: 2, Pix: []float32{0, 0.5, 1, 2}}
	if got := f.At(-1, 5); got != 1 {
		t.Errorf("At(-1, 5) = %v, want the clamped texel (0, 1)", got)
	}
	g := f.Gray(0, 1)
	want := []uint8{0, 128, 255, 255}
	for i, w := range want {
		if g.Pix[i] != w {
			t.Errorf("Gray pixel %d = %d, want %d", i, g.Pix[i], w)
		}
	}
}

func TestImageStagingData(t *testing.T) {
	tests := []struct {
		name    string
		data    ImageStagingData
		wantErr bool
	}{
		{"valid", ImageStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2, BytesPerPixel: 4}, false},
		{"short", ImageStagingData{Pixels: make([]byte, 15), Width: 2, Height: 2, BytesPerPixel: 4}, true},
		{"empty", ImageStagingData{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.data.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if _, err := (ImageStagingData{Pixels: make([]byte, 4), Width: 2, Height: 1, BytesPerPixel: 2}).RGBA(); err == nil {
		t.Error("RGBA() accepted two-byte texels")
	}
}

func TestSetLogger(t *testing.T) {
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger is not silent")
	}
	var buf strings.Builder
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })
	Logger().Info("hello", "k", 1)
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("log output = %q", buf.String())
	}
}

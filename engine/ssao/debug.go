package ssao

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"golang.org/x/image/draw"
)

func (s *ssao) AmbientImage(ctx context.Context) (*image.Gray, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrReleased
	}
	img := s.last.Ambient
	if img == nil {
		img = s.maps.Image(0)
	}
	width, height := s.width, s.height
	s.mu.Unlock()

	texels, err := s.r.ReadImage(ctx, img, 0)
	if err != nil {
		return nil, fmt.Errorf("ssao: reading %q: %w", img.Label(), err)
	}
	half := texels.Gray(0, 1)
	full := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(full, full.Bounds(), half, half.Bounds(), draw.Src, nil)
	return full, nil
}

func (s *ssao) NormalImage(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrReleased
	}
	normal := s.normalDepth.GBuffer().Normal
	s.mu.Unlock()

	var channels [3]*common.FloatImage
	for c := range channels {
		texels, err := s.r.ReadImage(ctx, normal, c)
		if err != nil {
			return nil, fmt.Errorf("ssao: reading %q channel %d: %w", normal.Label(), c, err)
		}
		channels[c] = texels
	}

	out := image.NewRGBA(image.Rect(0, 0, normal.Width(), normal.Height()))
	encode := func(v float32) uint8 {
		return uint8(common.Saturate(v*0.5+0.5)*255 + 0.5)
	}
	for y := 0; y < normal.Height(); y++ {
		for x := 0; x < normal.Width(); x++ {
			out.SetRGBA(x, y, color.RGBA{
				R: encode(channels[0].At(x, y)),
				G: encode(channels[1].At(x, y)),
				B: encode(channels[2].At(x, y)),
				A: 255,
			})
		}
	}
	return out, nil
}

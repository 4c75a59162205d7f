// Package imaging turns image files into Caffe Datum payloads.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/poiesic/datumload/core"
	"github.com/poiesic/datumload/storage"
	"golang.org/x/image/draw"
)

// DatumSerializer reads an item's image from Root and encodes it as a Datum.
//
// Raw datums hold channel-planar pixels in BGR order (or one gray channel),
// which is the layout Caffe's data layers expect. Encoded datums keep the
// compressed file bytes instead; they are only re-encoded when a resize is
// requested or Gray asks for a color file to be stored as grayscale.
type DatumSerializer struct {
	Root    string
	Width   int  // Resize width; resizing needs both Width and Height > 0
	Height  int  // Resize height
	Gray    bool // Single luminance channel instead of BGR
	Encoded bool
	Format  storage.Format
}

// Serialize implements ingestion.Serializer.
func (s *DatumSerializer) Serialize(ctx context.Context, item core.Item) ([]byte, error) {
	if err := core.ValidateItem(item); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	datum, err := s.ReadDatum(filepath.Join(s.Root, item.Source), item.Label)
	if err != nil {
		return nil, err
	}

	format := s.Format
	if format == "" {
		format = storage.FormatProto
	}
	return format.Marshal(datum)
}

// ReadDatum loads one image file as a labelled Datum.
func (s *DatumSerializer) ReadDatum(path string, label int) (*core.Datum, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var datum *core.Datum
	if s.Encoded && !s.resizing() && (!s.Gray || isGray(raw)) {
		datum = &core.Datum{Data: raw, Label: int32(label), Encoded: true}
	} else {
		img, format, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", storage.ErrSerializationFailed, path, err)
		}
		if s.resizing() {
			img = Resize(img, s.Width, s.Height)
		}

		if s.Encoded {
			if s.Gray {
				img = ToGray(img)
			}
			data, err := encode(img, format)
			if err != nil {
				return nil, fmt.Errorf("%w: re-encoding %s: %w", storage.ErrSerializationFailed, path, err)
			}
			datum = &core.Datum{Data: data, Label: int32(label), Encoded: true}
		} else {
			datum = ToDatum(img, s.Gray)
			datum.Label = int32(label)
		}
	}

	if err := core.ValidateDatum(datum); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrSerializationFailed, path, err)
	}
	return datum, nil
}

func (s *DatumSerializer) resizing() bool {
	return s.Width > 0 && s.Height > 0
}

// Resize scales img to width×height with bilinear interpolation.
func Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToGray converts img to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	dst := image.NewGray(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

func isGray(raw []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	return cfg.ColorModel == color.GrayModel || cfg.ColorModel == color.Gray16Model
}

// ToDatum lays img out as planar BGR, or a single gray plane.
func ToDatum(img image.Image, gray bool) *core.Datum {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height

	channels := 3
	if gray {
		channels = 1
	}
	data := make([]byte, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			i := y*width + x
			if gray {
				data[i] = color.GrayModel.Convert(c).(color.Gray).Y
				continue
			}
			r, g, bl, _ := c.RGBA()
			data[i] = uint8(bl >> 8)
			data[plane+i] = uint8(g >> 8)
			data[2*plane+i] = uint8(r >> 8)
		}
	}

	return &core.Datum{
		Channels: int32(channels),
		Height:   int32(height),
		Width:    int32(width),
		Data:     data,
	}
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

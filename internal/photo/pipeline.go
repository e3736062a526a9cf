// Package photo turns an uploaded image into a bounded JPEG suitable for storage.
package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	// registered decoders
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension   = 1200
	DefaultMaxOutputBytes = 1048576
	DefaultMaxInputBytes  = 5 * 1024 * 1024

	OutputContentType = "image/jpeg"

	megabyte = 1048576
)

var (
	ErrUnsupportedMime   = errors.New("file is not an image")
	ErrInputTooLarge     = errors.New("image exceeds upload limit")
	ErrDecode            = errors.New("image could not be decoded")
	ErrEncode            = errors.New("image could not be encoded")
	ErrSizeLimitExceeded = errors.New("compressed image exceeds size limit")
)

type Options struct {
	MaxDimension   int
	MaxOutputBytes int
	MaxInputBytes  int64
}

// Source — исходный файл как его прислал клиент
type Source struct {
	Data        []byte
	ContentType string
	Size        int64 // размер оригинала; 0 = len(Data)
}

// Result is the compressed image. It exists only between upload and storage.
type Result struct {
	Data           []byte
	ContentType    string
	Width          int
	Height         int
	Quality        float64
	OriginalSize   int64
	PreviewDataURI string
}

type Pipeline struct {
	opts Options
}

func NewPipeline(opts Options) *Pipeline {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.MaxInputBytes <= 0 {
		opts.MaxInputBytes = DefaultMaxInputBytes
	}
	return &Pipeline{opts: opts}
}

func (p *Pipeline) Options() Options {
	return p.opts
}

// Process decodes, downscales and re-encodes src. On any error no data is returned.
func (p *Pipeline) Process(ctx context.Context, src Source) (*Result, error) {
	if !IsImageType(src.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMime, src.ContentType)
	}

	size := src.Size
	if size <= 0 {
		size = int64(len(src.Data))
	}
	if size > p.opts.MaxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, size, p.opts.MaxInputBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := TargetSize(bounds.Dx(), bounds.Dy(), p.opts.MaxDimension)
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := QualityFor(size)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(math.Round(q * 100))}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if buf.Len() > p.opts.MaxOutputBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrSizeLimitExceeded, buf.Len(), p.opts.MaxOutputBytes)
	}

	data := buf.Bytes()
	return &Result{
		Data:           data,
		ContentType:    OutputContentType,
		Width:          w,
		Height:         h,
		Quality:        q,
		OriginalSize:   size,
		PreviewDataURI: DataURI(OutputContentType, data),
	}, nil
}

// TargetSize fits w×h into a maxDim×maxDim box without upscaling.
func TargetSize(w, h, maxDim int) (int, int) {
	if w <= 0 || h <= 0 || maxDim <= 0 {
		return w, h
	}
	scale := math.Min(1, math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h)))
	if scale >= 1 {
		return w, h
	}
	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

// QualityFor picks the JPEG quality tier from the original file size.
func QualityFor(originalSize int64) float64 {
	switch {
	case originalSize > 3*megabyte:
		return 0.5
	case originalSize > megabyte:
		return 0.6
	default:
		return 0.7
	}
}

func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

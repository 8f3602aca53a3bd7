package render

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an output image format.
type Format string

// Supported formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Viewport and quality limits.
const (
	DefaultWidth   = 1200
	DefaultHeight  = 630
	MaxDimension   = 4096
	MaxScaleFactor = 4.0
	DefaultQuality = 80
	DefaultScale   = 1.0
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid render options")

// Options controls how a document is rasterised.
type Options struct {
	Width             int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height            int     `json:"height,omitempty" yaml:"height,omitempty"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor,omitempty" yaml:"deviceScaleFactor,omitempty"`
	Format            Format  `json:"format,omitempty" yaml:"format,omitempty"`
	// Quality applies to jpeg and webp only.
	Quality     int  `json:"quality,omitempty" yaml:"quality,omitempty"`
	FullPage    bool `json:"fullPage,omitempty" yaml:"fullPage,omitempty"`
	Transparent bool `json:"transparent,omitempty" yaml:"transparent,omitempty"`
}

// ParseFormat maps a format name, ignoring case, to a Format.
// "jpg" is accepted as an alias for jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidOptions, s)
}

// Normalize returns a copy of o with zero fields replaced by defaults.
func (o Options) Normalize() Options {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.DeviceScaleFactor == 0 {
		o.DeviceScaleFactor = DefaultScale
	}
	if f, err := ParseFormat(string(o.Format)); err == nil {
		o.Format = f
	}
	if o.Quality == 0 && o.Format.lossy() {
		o.Quality = DefaultQuality
	}
	return o
}

// Validate reports the first constraint o violates.
func (o Options) Validate() error {
	switch {
	case o.Width < 1 || o.Width > MaxDimension:
		return fmt.Errorf("%w: width must be between 1 and %d", ErrInvalidOptions, MaxDimension)
	case o.Height < 1 || o.Height > MaxDimension:
		return fmt.Errorf("%w: height must be between 1 and %d", ErrInvalidOptions, MaxDimension)
	case !(o.DeviceScaleFactor > 0 && o.DeviceScaleFactor <= MaxScaleFactor):
		return fmt.Errorf("%w: deviceScaleFactor must be greater than 0 and at most %g", ErrInvalidOptions, MaxScaleFactor)
	}
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	if o.Quality != 0 {
		if !o.Format.lossy() {
			return fmt.Errorf("%w: quality applies to jpeg and webp only", ErrInvalidOptions)
		}
		if o.Quality < 1 || o.Quality > 100 {
			return fmt.Errorf("%w: quality must be between 1 and 100", ErrInvalidOptions)
		}
	}
	if o.Transparent && o.Format == FormatJPEG {
		return fmt.Errorf("%w: jpeg does not support transparency", ErrInvalidOptions)
	}
	return nil
}

func (f Format) lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// ContentType returns the MIME type of images in format f.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	}
	return "image/png"
}

// Extension returns the file extension for f, without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	}
	return "png"
}

// ContentType returns the MIME type of the rendered image.
func (o Options) ContentType() string { return o.Format.ContentType() }

// Extension returns the file extension of the rendered image.
func (o Options) Extension() string { return o.Format.Extension() }

package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image, known after Decode.
	Width int `json:"width" yaml:"width"`
	// The height of the image, known after Decode.
	Height int `json:"height" yaml:"height"`
}

// LoadImage reads an encoded image file, inferring its format from the extension.
//
// Arguments:
//   - path: A .jpg, .jpeg, .png or .webp file.
//
// Returns:
//   - *Image: The encoded image; call Decode to get pixels.
//   - error: ErrUnsupportedFormat or a read error.
func LoadImage(path string) (*Image, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %s", path)
	}
	return &Image{Format: format, Data: data}, nil
}

// Decode decodes the image data and records its dimensions.
//
// Returns:
//   - image.Image: The decoded pixels.
//   - error: An error if the data is empty, corrupt or of an unsupported format.
func (i *Image) Decode() (image.Image, error) {
	if len(i.Data) == 0 {
		return nil, errors.New("empty image data")
	}

	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(i.Data)
	switch i.Format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", i.Format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", i.Format)
	}

	b := img.Bounds()
	i.Width, i.Height = b.Dx(), b.Dy()
	return img, nil
}

package filestore

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 95

// imageExt normalizes a format name ("PNG", "jpeg", ...) to the file extension
// used for stored renditions.
func imageExt(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return "png", nil
	case "jpeg":
		return "jpeg", nil
	case "jpg":
		return "jpg", nil
	case "gif":
		return "gif", nil
	case "bmp":
		return "bmp", nil
	case "tiff":
		return "tiff", nil
	case "tif":
		return "tif", nil
	default:
		return "", fmt.Errorf("unsupported image format %q", format)
	}
}

func encodeImage(w io.Writer, img image.Image, ext string) error {
	switch ext {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff", "tif":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("no encoder for %q", ext)
	}
}

// DecodeImage decodes png, jpeg, gif, bmp, tiff or webp input.
func DecodeImage(raw []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", validationErr("decode_image", "", "decode image: %v", err)
	}
	return img, format, nil
}

package handlers

import (
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/platform/apierr"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

const uploadField = "file"

// formFile opens the multipart "file" part. The caller closes the returned file.
func formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large", err)
		}
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_request", fmt.Errorf("file is required"))
	}
	if strings.TrimSpace(fh.Filename) == "" {
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_request", fmt.Errorf("no file selected"))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	return f, fh, nil
}

// formImage reads and decodes the multipart "file" part.
func formImage(c *gin.Context) (image.Image, error) {
	f, _, err := formFile(c)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("read upload: %v", err)
	}
	img, _, err := filestore.DecodeImage(raw)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func badRequest(format string, args ...any) error {
	return apierr.New(http.StatusBadRequest, "invalid_request", fmt.Errorf(format, args...))
}

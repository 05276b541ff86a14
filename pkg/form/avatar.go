// Package form holds the host-side state of the registration and profile
// forms: field values, validation, the avatar picker and submission to the
// account backend.
package form

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/internal/utils"
	"github.com/menta2k/avatar-cropper/pkg/source"
)

// ErrNoImage is returned when the selected file is not an image
var ErrNoImage = errors.New("form: please choose an image file")

// AvatarField is the profile picture input: it checks the selected file,
// opens a crop widget over it and keeps the cropped result.
type AvatarField struct {
	opts   avatarcrop.Options
	loader *source.Loader
	widget *avatarcrop.Widget
	value  string
	logger *zap.Logger
}

// NewAvatarField creates an empty avatar field
func NewAvatarField(opts avatarcrop.Options) *AvatarField {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvatarField{
		opts:   opts,
		loader: source.NewWithConfig(opts.Source),
		logger: logger,
	}
}

// Select loads the chosen file and opens the crop widget over it. A widget
// left open by an earlier selection is cancelled first.
func (f *AvatarField) Select(r io.Reader) (*avatarcrop.Widget, error) {
	src, img, err := f.loader.Load(r)
	switch {
	case errors.Is(err, source.ErrFileTooLarge):
		limit := f.loader.Config().MaxFileSize
		if limit <= 0 {
			limit = source.DefaultMaxFileSize
		}
		return nil, fmt.Errorf("file size must be less than %s: %w", utils.FormatFileSize(limit), err)
	case errors.Is(err, source.ErrNotImage):
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	case err != nil:
		return nil, err
	}

	if f.widget != nil {
		_ = f.widget.Cancel()
	}

	var w *avatarcrop.Widget
	w, err = avatarcrop.NewWidget(src, img, f.opts,
		func(uri string) {
			f.value = uri
			if f.widget == w {
				f.widget = nil
			}
		},
		func() {
			if f.widget == w {
				f.widget = nil
			}
		})
	if err != nil {
		return nil, err
	}
	f.widget = w

	f.logger.Debug("avatar selected",
		zap.String("mime", src.MIME),
		zap.String("size", utils.FormatFileSize(src.Size)))
	return w, nil
}

// Widget returns the open crop widget, or nil when none is showing
func (f *AvatarField) Widget() *avatarcrop.Widget {
	return f.widget
}

// Value returns the cropped avatar data URI, or "" when there is none
func (f *AvatarField) Value() string {
	return f.value
}

// SetValue replaces the avatar without cropping, e.g. with a saved photo URL
func (f *AvatarField) SetValue(v string) {
	f.value = v
}

// Remove clears the picture and closes any open widget
func (f *AvatarField) Remove() {
	if f.widget != nil {
		_ = f.widget.Cancel()
		f.widget = nil
	}
	f.value = ""
}

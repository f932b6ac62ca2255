package item

import (
	stderrors "errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/go-drift/danmaku/pkg/errors"
)

// DecodeAvatar decodes a PNG, JPEG, GIF, BMP or WebP image.
func DecodeAvatar(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ResolveAvatars decodes every avatar path declared by the dataset and
// attaches the image to its item. Relative paths are resolved against dir.
//
// Items whose avatar cannot be loaded keep a nil Avatar; the failures are
// joined into the returned error.
func (d *Dataset) ResolveAvatars(dir string) error {
	if len(d.avatarRefs) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(d.avatarRefs))
	for i := range d.avatarRefs {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var errs []error
	for _, i := range indexes {
		path := d.avatarRefs[i]
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		img, err := loadAvatar(path)
		if err != nil {
			errs = append(errs, &errors.DanmakuError{
				Op:     "item.ResolveAvatars",
				Kind:   errors.KindIO,
				Source: path,
				Err:    fmt.Errorf("item %d: %w", i, err),
			})
			continue
		}
		d.Items[i].Avatar = img
	}
	return stderrors.Join(errs...)
}

func loadAvatar(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeAvatar(f)
}

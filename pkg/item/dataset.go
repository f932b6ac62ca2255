package item

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/graphics"
)

// CurrentVersion is the dataset schema version written by this package.
// Files declaring any v1.x.y version are accepted.
const CurrentVersion = "v1.0.0"

// Dataset is a fully loaded comment file.
type Dataset struct {
	// Version is the schema version declared by the file.
	Version string
	// Items holds every accepted row, normalized, in file order.
	Items []Item
	// Skipped counts rows that could not be decoded at all.
	Skipped int

	// avatarRefs maps an index in Items to its avatar path.
	avatarRefs map[int]string
}

// AvatarRefs returns the avatar path declared for each item index.
func (d *Dataset) AvatarRefs() map[int]string {
	refs := make(map[int]string, len(d.avatarRefs))
	for k, v := range d.avatarRefs {
		refs[k] = v
	}
	return refs
}

type datasetFile struct {
	Version string      `yaml:"version"`
	Items   []yaml.Node `yaml:"items"`
}

type itemRecord struct {
	Text     string  `yaml:"text"`
	Time     int64   `yaml:"time"`
	Type     string  `yaml:"type"`
	Color    string  `yaml:"color"`
	Priority int     `yaml:"priority"`
	Scale    float64 `yaml:"scale"`
	ID       string  `yaml:"id"`
	Avatar   string  `yaml:"avatar"`
}

// LoadDataset decodes a YAML (or JSON) comment file. A row whose fields
// cannot be decoded is skipped and counted; bad colors and unknown types
// fall back to defaults.
func LoadDataset(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &errors.DanmakuError{Op: "item.LoadDataset", Kind: errors.KindIO, Err: err}
	}

	var file datasetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &errors.DanmakuError{Op: "item.LoadDataset", Kind: errors.KindParsing, Err: err}
	}

	version, err := checkVersion(file.Version)
	if err != nil {
		return nil, &errors.DanmakuError{Op: "item.LoadDataset", Kind: errors.KindParsing, Err: err}
	}

	ds := &Dataset{
		Version:    version,
		Items:      make([]Item, 0, len(file.Items)),
		avatarRefs: make(map[int]string),
	}
	for i := range file.Items {
		var rec itemRecord
		if err := file.Items[i].Decode(&rec); err != nil {
			ds.Skipped++
			continue
		}
		ds.append(rec)
	}
	return ds, nil
}

func (d *Dataset) append(rec itemRecord) {
	it := New(rec.Text, rec.Time, Scroll)
	if typ, err := ParseVisualType(rec.Type); err == nil {
		it.Type = typ
	}
	if rec.Color != "" {
		if c, err := graphics.ParseColor(rec.Color); err == nil {
			it.Color = c
		}
	}
	it.Priority = rec.Priority
	it.TextScale = rec.Scale
	it.ID = rec.ID
	d.Items = append(d.Items, it.Normalize())
	if rec.Avatar != "" {
		d.avatarRefs[len(d.Items)-1] = rec.Avatar
	}
}

// checkVersion validates a declared schema version. An empty version means
// CurrentVersion; a missing "v" prefix is tolerated.
func checkVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return CurrentVersion, nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid dataset version %q", v)
	}
	if major := semver.Major(v); major != semver.Major(CurrentVersion) {
		return "", fmt.Errorf("unsupported dataset version %s (want %s.x.y)", v, semver.Major(CurrentVersion))
	}
	return v, nil
}

// LoadFile opens a comment file, choosing the decoder by extension
// (.xml is a Bilibili comment file, anything else YAML or JSON), and
// resolves avatar paths relative to the file's directory.
//
// Avatar decoding failures are returned alongside a usable dataset.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errors.DanmakuError{Op: "item.LoadFile", Kind: errors.KindIO, Source: path, Err: err}
	}
	defer f.Close()

	var ds *Dataset
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		ds, err = LoadBilibiliXML(f)
	} else {
		ds, err = LoadDataset(f)
	}
	if err != nil {
		var derr *errors.DanmakuError
		if stderrors.As(err, &derr) && derr.Source == "" {
			derr.Source = path
		}
		return nil, err
	}
	return ds, ds.ResolveAvatars(filepath.Dir(path))
}

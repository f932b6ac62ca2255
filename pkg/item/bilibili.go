package item

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/graphics"
)

// bilibiliBaseSize is the font size Bilibili files treat as scale 1.
const bilibiliBaseSize = 25

type bilibiliDocument struct {
	Comments []bilibiliComment `xml:"d"`
}

type bilibiliComment struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// LoadBilibiliXML decodes a Bilibili comment file: an XML document whose
// <d p="time,mode,size,color,..."> elements each hold one comment.
//
// Modes 1-3 scroll right-to-left, 4 is bottom, 5 is top and 6 scrolls
// left-to-right. Rows with any other mode or a malformed p attribute are
// skipped and counted.
func LoadBilibiliXML(r io.Reader) (*Dataset, error) {
	var doc bilibiliDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &errors.DanmakuError{Op: "item.LoadBilibiliXML", Kind: errors.KindParsing, Err: err}
	}

	ds := &Dataset{
		Version:    CurrentVersion,
		Items:      make([]Item, 0, len(doc.Comments)),
		avatarRefs: make(map[int]string),
	}
	for _, c := range doc.Comments {
		it, ok := parseBilibiliComment(c)
		if !ok {
			ds.Skipped++
			continue
		}
		ds.Items = append(ds.Items, it.Normalize())
	}
	return ds, nil
}

func parseBilibiliComment(c bilibiliComment) (Item, bool) {
	fields := strings.Split(c.P, ",")
	if len(fields) < 4 {
		return Item{}, false
	}

	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Item{}, false
	}
	mode, err := strconv.Atoi(fields[1])
	if err != nil {
		return Item{}, false
	}
	typ, ok := bilibiliMode(mode)
	if !ok {
		return Item{}, false
	}

	it := New(c.Text, int64(math.Round(seconds*1000)), typ)
	if size, err := strconv.ParseFloat(fields[2], 64); err == nil && size > 0 {
		it.TextScale = size / bilibiliBaseSize
	}
	if rgb, err := strconv.ParseUint(fields[3], 10, 32); err == nil {
		it.Color = graphics.FromRGB24(uint32(rgb))
	}
	if len(fields) > 7 {
		it.ID = fields[7]
	}
	if len(fields) > 8 {
		if weight, err := strconv.Atoi(fields[8]); err == nil {
			it.Priority = weight
		}
	}
	return it, true
}

func bilibiliMode(mode int) (VisualType, bool) {
	switch mode {
	case 1, 2, 3:
		return Scroll, true
	case 4:
		return Bottom, true
	case 5:
		return Top, true
	case 6:
		return ScrollReverse, true
	}
	return Scroll, false
}

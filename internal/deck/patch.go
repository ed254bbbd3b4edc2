package deck

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`)

const slideClose = "</p:sld>"

// Transition describes the effect added to every slide.
type Transition struct {
	Speed      string
	DurationMs int
}

var DefaultTransition = Transition{Speed: "med", DurationMs: 700}

// Fragment renders the markup-compatibility block: a p14 choice with an
// explicit duration and a plain fallback for older renderers.
func (t Transition) Fragment() string {
	dur := ""
	if t.DurationMs > 0 {
		dur = fmt.Sprintf(` p14:dur="%d"`, t.DurationMs)
	}
	return `<mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">` +
		`<mc:Choice xmlns:p14="http://schemas.microsoft.com/office/powerpoint/2010/main" Requires="p14">` +
		`<p:transition spd="` + t.Speed + `"` + dur + `><p:fade/></p:transition>` +
		`</mc:Choice>` +
		`<mc:Fallback>` +
		`<p:transition spd="` + t.Speed + `"><p:fade/></p:transition>` +
		`</mc:Fallback>` +
		`</mc:AlternateContent>`
}

// IsSlidePart reports whether name is a numbered slide part.
func IsSlidePart(name string) bool {
	return slidePart.MatchString(name)
}

// InsertTransition places the fragment right before the closing root tag
// of a slide part.
func InsertTransition(doc []byte, t Transition) ([]byte, error) {
	s := string(doc)
	i := strings.LastIndex(s, slideClose)
	if i < 0 {
		return nil, errors.New("closing </p:sld> tag not found")
	}
	out := s[:i] + t.Fragment() + s[i:]
	if err := wellFormed([]byte(out)); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func wellFormed(doc []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed xml: %w", err)
		}
	}
}

// Patch rewrites every slide part of the package with the transition and
// repacks the archive. Slide parts are recompressed at the best deflate
// level; all other entries are copied with their original compression. It
// returns the number of patched parts.
func Patch(pkg []byte, t Transition) ([]byte, int, error) {
	patched := 0
	out, err := repack(pkg, func(name string) (edit, bool) {
		if !IsSlidePart(name) {
			return nil, true
		}
		return func(doc []byte) ([]byte, error) {
			patched++
			return InsertTransition(doc, t)
		}, true
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	return out, patched, nil
}

// edit rewrites the body of one part.
type edit func(doc []byte) ([]byte, error)

// repack streams pkg into a new archive. plan decides per entry: keep=false
// drops it, a nil edit copies it raw, otherwise the edited body is deflated
// at the best level. extra may append new entries at the end.
func repack(pkg []byte, plan func(name string) (fn edit, keep bool), extra func(zw *zip.Writer) error) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, f := range zr.File {
		fn, keep := plan(f.Name)
		if !keep {
			continue
		}
		if fn == nil {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		doc, err := readPart(f)
		if err != nil {
			return nil, err
		}
		if doc, err = fn(doc); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: partTime})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(doc); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}

	if extra != nil {
		if err := extra(zw); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

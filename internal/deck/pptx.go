package deck

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	gopresentation "github.com/VantageDataChat/GoPPT"
	"github.com/klauspost/compress/zip"
)

// partTime is stamped on every rewritten entry so identical decks zip
// identically.
var partTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// CanvasMedia is the part holding the flattened canvas shown behind every
// slide.
const CanvasMedia = "ppt/media/canvas.png"

const (
	masterPart   = "ppt/slideMasters/slideMaster1.xml"
	masterRels   = "ppt/slideMasters/_rels/slideMaster1.xml.rels"
	contentTypes = "[Content_Types].xml"
	presPart     = "ppt/presentation.xml"
	presRels     = "ppt/_rels/presentation.xml.rels"
	appPart      = "docProps/app.xml"

	canvasRel = "rIdCanvas"
	relImage  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

var (
	masterBg     = regexp.MustCompile(`(?s)<p:bg>.*?</p:bg>`)
	pngDefault   = regexp.MustCompile(`Extension="png"`)
	slideOneType = regexp.MustCompile(`\s*<Override PartName="/ppt/slides/slide1\.xml"[^>]*>(</Override>)?`)
	slideOneRel  = regexp.MustCompile(`\s*<Relationship [^>]*Target="slides/slide1\.xml"[^>]*>(</Relationship>)?`)
	slideIDList  = regexp.MustCompile(`(?s)\s*<p:sldIdLst>.*?</p:sldIdLst>`)
	slideCount   = regexp.MustCompile(`<Slides>\d+</Slides>`)
)

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Write serializes d as a PresentationML package: a custom-sized layout,
// one full-bleed picture per slide and the canvas on the slide master over
// a solid fill.
func Write(w io.Writer, d *Deck) error {
	writer, err := gopresentation.NewWriter(presentation(d), gopresentation.WriterPowerPoint2007)
	if err != nil {
		return err
	}
	var raw bytes.Buffer
	if err := writer.WriteTo(&raw); err != nil {
		return fmt.Errorf("serialize deck: %w", err)
	}

	pkg, err := dressMaster(raw.Bytes(), d)
	if err != nil {
		return err
	}
	_, err = w.Write(pkg)
	return err
}

func presentation(d *Deck) *gopresentation.Presentation {
	pres := gopresentation.New()
	pres.GetLayout().SetCustomLayout(d.Width, d.Height)

	props := pres.GetDocumentProperties()
	props.Title = d.Title
	props.Creator = DefaultTitle
	props.LastModifiedBy = DefaultTitle
	props.Created = partTime
	props.Modified = partTime

	// New always starts with one empty slide; it becomes slide 1.
	first := pres.GetActiveSlide()
	for i, s := range d.Slides {
		slide := first
		if i > 0 {
			slide = pres.CreateSlide()
		}
		slide.SetName(s.Name)
		pic := slide.CreateDrawingShape()
		pic.SetPath(s.Image).
			SetOffsetX(0).
			SetOffsetY(0).
			SetWidth(d.Width).
			SetHeight(d.Height)
		pic.SetName(s.Name)
	}
	return pres
}

// dressMaster puts the canvas on the slide master and, for an empty deck,
// drops the placeholder slide the serializer always emits.
func dressMaster(pkg []byte, d *Deck) ([]byte, error) {
	empty := len(d.Slides) == 0
	return repack(pkg, func(name string) (edit, bool) {
		switch {
		case name == masterPart:
			return func(doc []byte) ([]byte, error) { return masterCanvas(doc, d) }, true
		case name == masterRels:
			return masterCanvasRel, true
		case name == contentTypes:
			return func(doc []byte) ([]byte, error) { return pngContentType(doc, empty) }, true
		case !empty:
			return nil, true
		case name == "ppt/slides/slide1.xml", name == "ppt/slides/_rels/slide1.xml.rels":
			return nil, false
		case name == presPart:
			return func(doc []byte) ([]byte, error) { return cutOnce(doc, slideIDList, "") }, true
		case name == presRels:
			return func(doc []byte) ([]byte, error) { return cutOnce(doc, slideOneRel, "") }, true
		case name == appPart:
			return func(doc []byte) ([]byte, error) { return cutOnce(doc, slideCount, "<Slides>0</Slides>") }, true
		}
		return nil, true
	}, func(zw *zip.Writer) error {
		return writeMedia(zw, CanvasMedia, d.Background)
	})
}

func masterCanvas(doc []byte, d *Deck) ([]byte, error) {
	fill := `<p:bg><p:bgPr><a:solidFill><a:srgbClr val="` + d.BackgroundColor + `"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`
	out, err := cutOnce(doc, masterBg, fill)
	if err != nil {
		return nil, err
	}

	s := string(out)
	if !strings.Contains(s, "<p:cSld>") {
		return nil, fmt.Errorf("master has no <p:cSld>")
	}
	s = strings.Replace(s, "<p:cSld>", `<p:cSld name="`+escape(d.Title)+`">`, 1)

	i := strings.LastIndex(s, "</p:spTree>")
	if i < 0 {
		return nil, fmt.Errorf("master has no shape tree")
	}
	s = s[:i] + canvasPicture(d.Width, d.Height) + s[i:]

	if err := wellFormed([]byte(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func canvasPicture(cx, cy int64) string {
	return fmt.Sprintf(`<p:pic>`+
		`<p:nvPicPr><p:cNvPr id="2" name="Background"/><p:cNvPicPr><a:picLocks noGrp="1" noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`+
		`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
		`<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`+
		`</p:pic>`, canvasRel, cx, cy)
}

func masterCanvasRel(doc []byte) ([]byte, error) {
	s := string(doc)
	i := strings.LastIndex(s, "</Relationships>")
	if i < 0 {
		return nil, fmt.Errorf("closing </Relationships> tag not found")
	}
	rel := `<Relationship Id="` + canvasRel + `" Type="` + relImage + `" Target="../media/canvas.png"/>`
	return []byte(s[:i] + rel + s[i:]), nil
}

func pngContentType(doc []byte, empty bool) ([]byte, error) {
	var err error
	if empty {
		if doc, err = cutOnce(doc, slideOneType, ""); err != nil {
			return nil, err
		}
	}
	if pngDefault.Match(doc) {
		return doc, nil
	}
	s := string(doc)
	i := strings.Index(s, "<Override")
	if i < 0 {
		return nil, fmt.Errorf("content types have no overrides")
	}
	return []byte(s[:i] + `<Default Extension="png" ContentType="image/png"></Default>` + s[i:]), nil
}

// cutOnce replaces the single match of re with repl.
func cutOnce(doc []byte, re *regexp.Regexp, repl string) ([]byte, error) {
	loc := re.FindAllIndex(doc, 2)
	if len(loc) != 1 {
		return nil, fmt.Errorf("expected one match of %s, found %d", re, len(loc))
	}
	out := make([]byte, 0, len(doc)+len(repl))
	out = append(out, doc[:loc[0][0]]...)
	out = append(out, repl...)
	return append(out, doc[loc[0][1]:]...), nil
}

// writeMedia stores a PNG as is; it is already compressed.
func writeMedia(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: partTime})
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

package pptx

import (
	"fmt"
	"strings"
)

func imageContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return ContentTypeJPEG
	case "gif":
		return "image/gif"
	default:
		return ContentTypePNG
	}
}

// addMedia stores image bytes as a new media part and relates it to the slide.
func (s *Slide) addMedia(img []byte, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "png"
	}
	pkg := s.pres.pkg
	part := pkg.UniqueName("ppt/media/image", "."+ext)
	pkg.SetPart(part, img)
	if err := pkg.EnsureDefault(ext, imageContentType(ext)); err != nil {
		return "", err
	}
	rels, err := s.Rels()
	if err != nil {
		return "", err
	}
	return rels.Add(RelImage, part), nil
}

func (s *Slide) pictureNode(rid, name string, rect Rect) (*Node, error) {
	root, err := s.root()
	if err != nil {
		return nil, err
	}
	root.EnsureNamespace("r", NamespaceR)
	id := s.nextShapeID()
	if name == "" {
		name = fmt.Sprintf("Picture %d", id)
	}
	return ParseFragment(fmt.Sprintf(
		`<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`+
			`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
			`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
		id, escape(name), rid, rect.X, rect.Y, rect.CX, rect.CY))
}

// AddPicture places an image on top of the slide.
func (s *Slide) AddPicture(img []byte, ext string, rect Rect, name string) (*Shape, error) {
	tree, err := s.spTree()
	if err != nil {
		return nil, err
	}
	rid, err := s.addMedia(img, ext)
	if err != nil {
		return nil, err
	}
	pic, err := s.pictureNode(rid, name, rect)
	if err != nil {
		return nil, err
	}
	if ext := tree.Child("extLst"); ext != nil {
		tree.InsertAt(tree.IndexOf(ext), pic)
	} else {
		tree.Append(pic)
	}
	return &Shape{Kind: KindPicture, node: pic, container: tree, slide: s}, nil
}

// ReplaceWithPicture swaps a shape for an image occupying rect.
func (s *Slide) ReplaceWithPicture(sh *Shape, img []byte, ext string, rect Rect) (*Shape, error) {
	rid, err := s.addMedia(img, ext)
	if err != nil {
		return nil, err
	}
	pic, err := s.pictureNode(rid, sh.Name(), rect)
	if err != nil {
		return nil, err
	}
	return sh.replace(pic)
}

// FitRect centres an image of w×h pixels inside box, preserving its
// aspect ratio.
func FitRect(box Rect, w, h int) Rect {
	if w <= 0 || h <= 0 || box.CX <= 0 || box.CY <= 0 {
		return box
	}
	cx := box.CX
	cy := cx * int64(h) / int64(w)
	if cy > box.CY {
		cy = box.CY
		cx = cy * int64(w) / int64(h)
	}
	return Rect{
		X:  box.X + (box.CX-cx)/2,
		Y:  box.Y + (box.CY-cy)/2,
		CX: cx,
		CY: cy,
	}
}

package export

import (
	"bytes"
	"math"

	"github.com/go-pdf/fpdf"
)

// renderPDF places the PNG rendering on a single page the size of the
// canvas, one point per canvas pixel.
func renderPDF(req *Request) ([]byte, error) {
	png := *req
	png.Format = PNG
	img, err := rasterize(&png)
	if err != nil {
		return nil, err
	}

	w, h := req.Document.Width, req.Document.Height
	orientation := "P"
	if w > h {
		orientation = "L"
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		// fpdf swaps the sides for landscape pages.
		Size: fpdf.SizeType{Wd: math.Min(w, h), Ht: math.Max(w, h)},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(req.Name, true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", opts, bytes.NewReader(img))
	pdf.ImageOptions("canvas", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

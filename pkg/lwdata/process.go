package lwdata

import (
	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/buffer"
	"livewidget/pkg/imageproc"
)

// process derives the effective buffer from src. The stages run in a fixed
// order: darkfield subtraction, normalization, image operation, image
// filter, despeckle. With nothing enabled src itself is returned; src is
// never modified.
func process(src *buffer.Store, p ProcessingSettings, r references) (*buffer.Store, error) {
	out := src
	var err error

	if p.DarkfieldSubtract {
		if out, err = imageproc.Subtract(out, r.darkfield); err != nil {
			return nil, err
		}
	}
	if p.Normalize {
		if out, err = imageproc.Normalize(out, r.flat); err != nil {
			return nil, err
		}
	}

	switch op := p.ImageOperation; {
	case op.IsStackReduction():
		out, err = imageproc.Reduce(out, op)
	case op == models.MultiplyByScalar:
		out, err = imageproc.Scale(out, p.OperationScalar)
	case op.IsPixelwise():
		if r.operand == nil {
			logging.Debug("%s selected without an operand, skipping", op)
			break
		}
		out, err = imageproc.Combine(out, r.operand, op)
	}
	if err != nil {
		return nil, err
	}

	if p.ImageFilter != models.NoImageFilter {
		if out, err = imageproc.Filter(out, p.ImageFilter, p.DespeckleThreshold); err != nil {
			return nil, err
		}
	}
	if p.Despeckle && p.ImageFilter != models.DespeckleFilter {
		if out, err = imageproc.Filter(out, models.DespeckleFilter, p.DespeckleThreshold); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Package lwdata is the image data engine behind the live detector view.
//
// A Data wraps a loaded buffer and everything derived from it: the
// effective buffer after stack processing, the presented values after log
// scaling, the display range and the histogram of the current layer.
// Collaborators read through the accessors and change state through the
// setters; every setter is a transaction that either commits a complete new
// state or returns an error and leaves the Data untouched.
//
// Data is not safe for concurrent use. One owner drives all setters.
package lwdata

import (
	"fmt"

	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/buffer"
	"livewidget/pkg/loader"
)

// Data is a displayed detector buffer with its presentation state.
type Data struct {
	// original is the buffer as loaded. It is never modified.
	original *buffer.Store
	// effective is original after stack processing. It may be original.
	effective *buffer.Store

	cur      int
	settings PresentationSettings
	resolved references
	refs     *referenceCache

	view extrema

	listeners []listener
	nextID    int
	notifying bool
}

// extrema caches the presented min/max of the current layer.
type extrema struct {
	valid  bool
	lo, hi float64
}

type listener struct {
	id int
	fn func(*Data)
}

// Option configures a Data at construction.
type Option func(*options)

type options struct {
	resolver  Resolver
	cacheSize int
	settings  *PresentationSettings
}

// WithResolver sets how reference files are loaded. The default loads
// them from disk relative to the working directory.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithReferenceCacheSize bounds the number of cached reference buffers.
func WithReferenceCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithSettings applies initial settings, e.g. a preset from a file.
func WithSettings(s PresentationSettings) Option {
	return func(o *options) { o.settings = &s }
}

// New wraps store. The Data takes over the store: owned stores are
// released when the Data replaces or unloads them.
func New(store *buffer.Store, opts ...Option) (*Data, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil buffer", models.ErrInvalidArgument)
	}
	o := options{cacheSize: DefaultReferenceCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = FileResolver("", nil)
	}

	d := &Data{
		original:  store,
		effective: store,
		settings:  DefaultSettings(),
		refs:      newReferenceCache(o.resolver, o.cacheSize),
	}
	if o.settings != nil {
		if err := d.ApplySettings(*o.settings); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Load decodes a byte stream and wraps the result.
func Load(data []byte, fileType models.FileType, lopts *loader.Options, opts ...Option) (*Data, error) {
	frame, err := loader.Load(data, fileType, lopts)
	if err != nil {
		return nil, err
	}
	return New(frame.Store, opts...)
}

// Clone returns an independent deep copy. The reference cache is shared,
// update listeners are not copied.
func (d *Data) Clone() *Data {
	c := &Data{
		original: d.original.Clone(),
		cur:      d.cur,
		settings: d.settings.clone(),
		resolved: d.resolved,
		refs:     d.refs,
		view:     d.view,
	}
	if d.effective == d.original {
		c.effective = c.original
	} else {
		c.effective = d.effective.Clone()
	}
	return c
}

// Width is the pixel width of the effective buffer.
func (d *Data) Width() int { return d.effective.Width() }

// Height is the pixel height of the effective buffer.
func (d *Data) Height() int { return d.effective.Height() }

// Depth is the number of layers after stack processing.
func (d *Data) Depth() int { return d.effective.Depth() }

// Empty reports whether the buffer holds no pixels.
func (d *Data) Empty() bool { return d.effective.Len() == 0 }

// Buffer returns the effective buffer. It must be treated as read-only.
func (d *Data) Buffer() *buffer.Store { return d.effective }

// Original returns the buffer as loaded, before stack processing.
func (d *Data) Original() *buffer.Store { return d.original }

// CurrentLayer is the layer presentation operations act on.
func (d *Data) CurrentLayer() int { return d.cur }

// SetCurrentLayer selects the layer presentation operations act on.
func (d *Data) SetCurrentLayer(z int) error {
	if d.notifying {
		return models.ErrBusy
	}
	if z < 0 || z >= d.Depth() {
		return fmt.Errorf("%w: layer %d outside [0, %d)", models.ErrOutOfBounds, z, d.Depth())
	}
	if z == d.cur {
		return nil
	}
	d.cur = z
	d.view.valid = false
	d.notify()
	return nil
}

// Settings returns a copy of the current presentation settings.
func (d *Data) Settings() PresentationSettings {
	return d.settings.clone()
}

// ApplySettings replaces all presentation settings at once.
func (d *Data) ApplySettings(s PresentationSettings) error {
	return d.update(s.clone())
}

// IsLogScale reports whether values are presented as log10 counts.
func (d *Data) IsLogScale() bool { return d.settings.LogScale }

// SetLogScale switches the log10 presentation on or off.
func (d *Data) SetLogScale(on bool) error {
	return d.mutate(func(s *PresentationSettings) { s.LogScale = on })
}

// CustomRange returns the custom display range, if one is set.
func (d *Data) CustomRange() (Range, bool) {
	if d.settings.CustomRange == nil {
		return Range{}, false
	}
	return *d.settings.CustomRange, true
}

// SetCustomRange fixes the display range. lower must not exceed upper.
func (d *Data) SetCustomRange(lower, upper float64) error {
	return d.mutate(func(s *PresentationSettings) { s.CustomRange = &Range{Lower: lower, Upper: upper} })
}

// ClearCustomRange returns to the min/max of the current layer.
func (d *Data) ClearCustomRange() error {
	return d.mutate(func(s *PresentationSettings) { s.CustomRange = nil })
}

// ImageFilter is the selected spatial filter.
func (d *Data) ImageFilter() models.ImageFilter { return d.settings.Processing.ImageFilter }

// SetImageFilter selects the spatial filter applied within each layer.
func (d *Data) SetImageFilter(kind models.ImageFilter) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.ImageFilter = kind })
}

// ImageOperation is the selected stack or pixelwise operation.
func (d *Data) ImageOperation() models.ImageOperation { return d.settings.Processing.ImageOperation }

// SetImageOperation selects the stack or pixelwise operation.
func (d *Data) SetImageOperation(op models.ImageOperation) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.ImageOperation = op })
}

// SetOperationReference sets the operand file of the pixelwise operations.
// An empty id clears it.
func (d *Data) SetOperationReference(id string) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.OperationFile = id })
}

// SetOperationScalar sets the factor of MultiplyByScalar.
func (d *Data) SetOperationScalar(factor float64) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.OperationScalar = factor })
}

// IsDespeckled reports whether spike suppression runs after the filter.
func (d *Data) IsDespeckled() bool { return d.settings.Processing.Despeckle }

// SetDespeckle switches spike suppression on or off.
func (d *Data) SetDespeckle(on bool) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.Despeckle = on })
}

// DespeckleThreshold is how far a pixel may exceed its neighborhood median.
func (d *Data) DespeckleThreshold() float64 { return d.settings.Processing.DespeckleThreshold }

// SetDespeckleThreshold sets the despeckle threshold in counts. It must not be negative.
func (d *Data) SetDespeckleThreshold(v float64) error {
	return d.mutate(func(s *PresentationSettings) { s.Processing.DespeckleThreshold = v })
}

// IsDarkfieldSubtracted reports whether the darkfield is subtracted.
func (d *Data) IsDarkfieldSubtracted() bool { return d.settings.Processing.DarkfieldSubtract }

// DarkfieldFile is the selected darkfield reference.
func (d *Data) DarkfieldFile() string { return d.settings.Processing.DarkfieldFile }

// SetDarkfieldReference selects the darkfield file and whether it is
// subtracted. A failed load leaves file and flag unchanged.
func (d *Data) SetDarkfieldReference(id string, enabled bool) error {
	return d.mutate(func(s *PresentationSettings) {
		s.Processing.DarkfieldFile = id
		s.Processing.DarkfieldSubtract = enabled
	})
}

// IsNormalized reports whether flat-field normalization is applied.
func (d *Data) IsNormalized() bool { return d.settings.Processing.Normalize }

// NormalizeFile is the selected flat-field reference.
func (d *Data) NormalizeFile() string { return d.settings.Processing.NormalizeFile }

// SetNormalizeReference selects the flat-field file and whether it is
// applied. A failed load leaves file and flag unchanged.
func (d *Data) SetNormalizeReference(id string, enabled bool) error {
	return d.mutate(func(s *PresentationSettings) {
		s.Processing.NormalizeFile = id
		s.Processing.Normalize = enabled
	})
}

// ValueLabel names the presented quantity for axis titles.
func (d *Data) ValueLabel() string {
	if d.settings.LogScale {
		return "log Counts"
	}
	return "Counts"
}

// Replace swaps in a new buffer and re-applies the current settings to it.
// The layer is reset to 0 unless keepLayer is set and the layer exists in
// the new buffer. On error the previous buffer stays active. The previous
// buffer is released.
func (d *Data) Replace(store *buffer.Store, keepLayer bool) error {
	if d.notifying {
		return models.ErrBusy
	}
	if store == nil {
		return fmt.Errorf("%w: nil buffer", models.ErrInvalidArgument)
	}
	r, err := d.refs.resolveAll(d.settings.Processing)
	if err != nil {
		return err
	}
	effective, err := process(store, d.settings.Processing, r)
	if err != nil {
		return fmt.Errorf("apply settings to new buffer: %w", err)
	}

	layer := 0
	if keepLayer {
		layer = d.cur
	}
	oldOriginal, oldEffective := d.original, d.effective
	d.commit(store, effective, d.settings, r, layer)
	release(oldOriginal, oldEffective, store, effective)

	logging.Debug("buffer replaced: %v", store)
	d.notify()
	return nil
}

// Unload releases the buffer and leaves an empty one in its place.
func (d *Data) Unload() error {
	if d.notifying {
		return models.ErrBusy
	}
	empty, err := buffer.Zeroed(0, 0, 0)
	if err != nil {
		return err
	}
	oldOriginal, oldEffective := d.original, d.effective
	d.commit(empty, empty, d.settings, d.resolved, 0)
	release(oldOriginal, oldEffective, empty, empty)
	d.notify()
	return nil
}

// OnUpdate registers fn to be called after every committed change of the
// presented values or the display range. The returned function removes it.
// fn must not call setters; they fail with ErrBusy.
func (d *Data) OnUpdate(fn func(*Data)) (cancel func()) {
	id := d.nextID
	d.nextID++
	d.listeners = append(d.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

func (d *Data) notify() {
	d.notifying = true
	defer func() { d.notifying = false }()
	for _, l := range d.listeners {
		l.fn(d)
	}
}

// mutate runs edit on a copy of the settings and applies the result.
func (d *Data) mutate(edit func(*PresentationSettings)) error {
	next := d.settings.clone()
	edit(&next)
	return d.update(next)
}

// update is the single recomputation entry point for setting changes.
// Processing only reruns when the processing settings changed; it always
// starts from the original buffer so toggling a stage off and on again
// reproduces the earlier result exactly.
func (d *Data) update(next PresentationSettings) error {
	if d.notifying {
		return models.ErrBusy
	}
	if err := next.Validate(); err != nil {
		return err
	}

	if next.Processing == d.settings.Processing {
		d.commit(d.original, d.effective, next, d.resolved, d.cur)
		d.notify()
		return nil
	}

	r, err := d.refs.resolveAll(next.Processing)
	if err != nil {
		return err
	}
	effective, err := process(d.original, next.Processing, r)
	if err != nil {
		return err
	}
	logging.Debug("reprocessed %v: %+v", d.original, next.Processing)

	old := d.effective
	d.commit(d.original, effective, next, r, d.cur)
	if old != d.original && old != effective {
		old.Release()
	}
	d.notify()
	return nil
}

// commit installs a fully computed state. It never fails.
func (d *Data) commit(original, effective *buffer.Store, s PresentationSettings, r references, layer int) {
	d.original = original
	d.effective = effective
	d.settings = s
	d.resolved = r
	if layer >= effective.Depth() {
		layer = effective.Depth() - 1
	}
	if layer < 0 {
		layer = 0
	}
	d.cur = layer
	d.view.valid = false
}

// release frees the outgoing buffers unless they are still in use.
func release(oldOriginal, oldEffective, original, effective *buffer.Store) {
	if oldEffective != oldOriginal && oldEffective != effective && oldEffective != original {
		oldEffective.Release()
	}
	if oldOriginal != original && oldOriginal != effective {
		oldOriginal.Release()
	}
}

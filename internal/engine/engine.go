// Package engine is the facade over the editing machinery: it owns the
// hotspot store, session manager, sampler, drag controller and retouch
// provider, and serializes every mutation behind one lock so UI layers can
// call it from any goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arjun/pinpoint/internal/drag"
	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/internal/hotspot"
	"github.com/arjun/pinpoint/internal/imageio"
	"github.com/arjun/pinpoint/internal/policy"
	"github.com/arjun/pinpoint/internal/retouch"
	"github.com/arjun/pinpoint/internal/sampler"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/internal/upload"
	"github.com/arjun/pinpoint/pkg/models"
)

var (
	ErrNoBaseImage      = errors.New("no image loaded")
	ErrBusy             = errors.New("processing is already in progress")
	ErrSuppressed       = errors.New("click suppressed after drag")
	ErrNoDrag           = errors.New("no drag in progress")
	ErrStale            = errors.New("session changed while processing")
	ErrImageUnavailable = errors.New("image data unavailable for history entry")
	ErrNoUploader       = errors.New("no upload endpoint configured")
)

// Engine coordinates one editing workspace. All exported methods are safe for
// concurrent use.
type Engine struct {
	mu sync.Mutex

	hotspots *hotspot.Store
	sessions *session.Manager
	sampler  *sampler.Sampler
	debounce *sampler.Debouncer
	drag     *drag.Controller
	provider retouch.Provider
	fetcher  *imageio.Fetcher
	uploader *upload.Client
	log      *slog.Logger

	img     image.Image
	imgData []byte
	imageID string

	// imageCache keeps the bytes of every history entry seen this run so
	// reverting does not have to re-fetch.
	imageCache map[string][]byte

	profiles   map[int]models.ColorProfile
	processing bool
	uploading  map[int]bool

	// generation invalidates in-flight work: it bumps on reset, revert and
	// base-image change, and anything that started under an older value
	// discards its result.
	generation uint64
}

// Options configures an Engine. Provider is required for Submit; the rest
// have working defaults.
type Options struct {
	Limits   policy.Limits
	Provider retouch.Provider
	Fetcher  *imageio.Fetcher
	Uploader *upload.Client
	Debounce time.Duration
	Logger   *slog.Logger
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = imageio.NewFetcher()
	}
	if opts.Limits == (policy.Limits{}) {
		opts.Limits = policy.DefaultLimits()
	}
	return &Engine{
		hotspots:   hotspot.NewStore(),
		sessions:   session.NewManager(opts.Limits),
		sampler:    sampler.New(),
		debounce:   sampler.NewDebouncer(opts.Debounce),
		drag:       drag.NewController(),
		provider:   opts.Provider,
		fetcher:    opts.Fetcher,
		uploader:   opts.Uploader,
		log:        opts.Logger,
		imageCache: make(map[string][]byte),
		profiles:   make(map[int]models.ColorProfile),
		uploading:  make(map[int]bool),
	}
}

// LoadImage installs a new base image, discarding any previous editing state
// except the sessions-used counter.
func (e *Engine) LoadImage(data []byte, url string) error {
	img, err := imageio.Decode(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.debounce.CancelAll()
	e.drag.Cancel()
	e.hotspots.Reset()
	e.sampler.Invalidate()
	e.profiles = make(map[int]models.ColorProfile)

	id := uuid.New().String()
	e.sessions.SetBaseImage(session.ProcessedImage{
		ID:        id,
		URL:       url,
		CreatedAt: time.Now(),
	})
	e.img = img
	e.imgData = data
	e.imageID = id
	e.imageCache = map[string][]byte{id: data}

	e.log.Info("image loaded", "imageId", id, "bytes", len(data))
	return nil
}

// AddHotspotAt places a hotspot at a pixel click position. The click is
// ignored during processing and inside the post-drag suppression window.
func (e *Engine) AddHotspotAt(click geometry.Point, bounds geometry.Bounds) (models.Hotspot, error) {
	if e.drag.ClickSuppressed() {
		return models.Hotspot{}, ErrSuppressed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.img == nil {
		return models.Hotspot{}, ErrNoBaseImage
	}
	if e.processing {
		return models.Hotspot{}, ErrBusy
	}
	if d := e.sessions.CanAddHotspot(); !d.Allowed {
		return models.Hotspot{}, fmt.Errorf("%w: %s", session.ErrLimitReached, d.Reason)
	}

	h, err := e.hotspots.AddAt(click, bounds)
	if err != nil {
		return models.Hotspot{}, err
	}

	if e.sessions.HasActiveSession() {
		err = e.sessions.AddHotspot(h.ID)
	} else {
		err = e.sessions.CreateAndAddHotspot(h.ID)
	}
	if err != nil {
		// keep the store consistent with the session bookkeeping
		e.hotspots.Remove(h.ID)
		return models.Hotspot{}, err
	}

	e.profiles[h.ID] = sampler.NeutralProfile
	e.scheduleSample(h.ID)
	e.log.Info("hotspot added", "id", h.ID, "x", h.X, "y", h.Y)
	return h, nil
}

// RemoveHotspot deletes a hotspot. Unknown ids are a no-op, matching the
// store and session semantics.
func (e *Engine) RemoveHotspot(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.processing {
		return ErrBusy
	}

	e.hotspots.Remove(id)
	e.debounce.Cancel(id)
	delete(e.profiles, id)
	if e.sessions.HasActiveSession() {
		return e.sessions.RemoveHotspot(id)
	}
	return nil
}

// UpdatePrompt sets the instruction text on a hotspot.
func (e *Engine) UpdatePrompt(id int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hotspots.UpdatePrompt(id, text)
}

// UploadReference uploads a reference image and attaches it to the hotspot.
// Concurrent uploads for the same hotspot are rejected; the last to finish
// would otherwise win silently.
func (e *Engine) UploadReference(ctx context.Context, id int, filename string, data []byte) (*models.ReferenceImage, error) {
	e.mu.Lock()
	if e.uploader == nil {
		e.mu.Unlock()
		return nil, ErrNoUploader
	}
	if _, ok := e.hotspots.Get(id); !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	if e.uploading[id] {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.uploading[id] = true
	gen := e.generation
	e.mu.Unlock()

	ref, err := e.uploader.Upload(ctx, filename, data)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.uploading, id)

	if err != nil {
		return nil, err
	}
	if e.generation != gen {
		return nil, ErrStale
	}
	if err := e.hotspots.AttachReference(id, *ref); err != nil {
		return nil, err
	}
	e.log.Info("reference attached", "hotspotId", id, "refId", ref.ID)
	return ref, nil
}

// AttachReference attaches an already-hosted reference image to a hotspot,
// bypassing the upload step. Scripted edits use this with bare URLs.
func (e *Engine) AttachReference(id int, ref models.ReferenceImage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	if ref.PreviewURL == "" {
		ref.PreviewURL = ref.URL
	}
	return e.hotspots.AttachReference(id, ref)
}

// DetachReference removes the reference image from a hotspot.
func (e *Engine) DetachReference(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hotspots.DetachReference(id)
}

// MoveHotspot commits a new percent position directly, without the drag
// protocol. Remote clients that track their own pointer use this.
func (e *Engine) MoveHotspot(id int, x, y float64) (models.Hotspot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.processing {
		return models.Hotspot{}, ErrBusy
	}
	h, err := e.hotspots.Move(id, x, y)
	if err != nil {
		return models.Hotspot{}, err
	}
	e.scheduleSample(id)
	return h, nil
}

// BeginDrag starts dragging a hotspot from the given pointer position.
func (e *Engine) BeginDrag(id int, pointer geometry.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.processing {
		return ErrBusy
	}
	h, ok := e.hotspots.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	e.drag.Begin(id, pointer, geometry.Point{X: h.X, Y: h.Y})
	return nil
}

// MoveDrag returns the preview position for the current pointer position.
// The preview is not written to the store; End commits.
func (e *Engine) MoveDrag(pointer geometry.Point, bounds geometry.Bounds) (geometry.Point, bool) {
	return e.drag.Move(pointer, bounds)
}

// EndDrag commits the final drag position and schedules a profile
// recomputation for the moved hotspot.
func (e *Engine) EndDrag(pointer geometry.Point, bounds geometry.Bounds) (models.Hotspot, error) {
	id, pos, ok := e.drag.End(pointer, bounds)
	if !ok {
		return models.Hotspot{}, ErrNoDrag
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.hotspots.Move(id, pos.X, pos.Y)
	if err != nil {
		return models.Hotspot{}, err
	}
	e.scheduleSample(id)
	return h, nil
}

// CancelDrag abandons the drag without moving the hotspot.
func (e *Engine) CancelDrag() {
	e.drag.Cancel()
}

// Submit sends the described hotspots to the retouch provider and, on
// success, makes the result the new working image and completes the phase.
// A failed submission leaves every counter and hotspot untouched.
func (e *Engine) Submit(ctx context.Context) (session.ProcessedImage, error) {
	e.mu.Lock()
	if e.provider == nil {
		e.mu.Unlock()
		return session.ProcessedImage{}, retouch.ErrProviderNotFound
	}
	if e.img == nil {
		e.mu.Unlock()
		return session.ProcessedImage{}, ErrNoBaseImage
	}
	if e.processing {
		e.mu.Unlock()
		return session.ProcessedImage{}, ErrBusy
	}

	decision := e.sessions.Limits().CanProcessEdits(e.sessions.EditCount(), e.hotspots.List())
	if !decision.Allowed {
		e.mu.Unlock()
		return session.ProcessedImage{}, fmt.Errorf("%w: %s", session.ErrLimitReached, decision.Reason)
	}

	e.processing = true
	gen := e.generation
	req := models.NewProcessRequest(e.imgData, models.EditPointsFrom(decision.Valid))
	e.mu.Unlock()

	started := time.Now()
	result, err := e.provider.Process(ctx, req)
	var resultData []byte
	if err == nil {
		resultData = result.Data
		if len(resultData) == 0 && result.ImageURL != "" {
			resultData, err = e.fetcher.Fetch(ctx, result.ImageURL)
		}
	}
	var img image.Image
	if err == nil {
		img, err = imageio.Decode(resultData)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.processing = false

	if err != nil {
		e.log.Error("processing failed", "error", err, "elapsed", time.Since(started))
		return session.ProcessedImage{}, err
	}
	if e.generation != gen {
		e.log.Warn("discarding stale processing result")
		return session.ProcessedImage{}, ErrStale
	}

	entry := session.ProcessedImage{
		ID:        uuid.New().String(),
		URL:       result.ImageURL,
		CreatedAt: time.Now(),
	}
	if err := e.sessions.CompletePhase(entry); err != nil {
		return session.ProcessedImage{}, err
	}

	e.hotspots.Clear()
	e.debounce.CancelAll()
	e.sampler.Invalidate()
	e.profiles = make(map[int]models.ColorProfile)

	e.img = img
	e.imgData = resultData
	e.imageID = entry.ID
	e.imageCache[entry.ID] = resultData

	e.log.Info("phase processed",
		"imageId", entry.ID,
		"points", len(decision.Valid),
		"editCount", e.sessions.EditCount(),
		"elapsed", time.Since(started))
	return entry, nil
}

// Revert makes an earlier history entry the working image and reopens the
// session for a new phase. Index zero is the pristine base image.
func (e *Engine) Revert(ctx context.Context, index int) (session.ProcessedImage, error) {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return session.ProcessedImage{}, ErrBusy
	}
	history := e.sessions.History()
	if index < 0 || index >= len(history) {
		e.mu.Unlock()
		return session.ProcessedImage{}, fmt.Errorf("%w: %d (history has %d entries)",
			session.ErrInvalidHistoryIndex, index, len(history))
	}
	target := history[index]
	data, cached := e.imageCache[target.ID]
	e.mu.Unlock()

	// fetch outside the lock; failure leaves state untouched
	if !cached {
		if target.URL == "" {
			return session.ProcessedImage{}, ErrImageUnavailable
		}
		var err error
		data, err = e.fetcher.Fetch(ctx, target.URL)
		if err != nil {
			return session.ProcessedImage{}, err
		}
	}
	img, err := imageio.Decode(data)
	if err != nil {
		return session.ProcessedImage{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.sessions.RevertToHistory(index)
	if err != nil {
		return session.ProcessedImage{}, err
	}

	e.generation++
	e.debounce.CancelAll()
	e.drag.Cancel()
	e.hotspots.Clear()
	e.sampler.Invalidate()
	e.profiles = make(map[int]models.ColorProfile)

	e.img = img
	e.imgData = data
	e.imageID = entry.ID
	e.imageCache[entry.ID] = data

	e.log.Info("reverted to history entry", "index", index, "imageId", entry.ID)
	return entry, nil
}

// Reset is start-over: all hotspots, the session and the edit history go,
// leaving only the pristine base image. The sessions-used counter survives.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// processing is left alone: an in-flight Submit clears it itself when it
	// returns, and its result is discarded by the generation bump
	e.generation++
	e.debounce.CancelAll()
	e.drag.Cancel()
	e.sessions.Reset()
	e.hotspots.Reset()
	e.sampler.Invalidate()
	e.profiles = make(map[int]models.ColorProfile)

	if base, ok := e.sessions.CurrentImage(); ok {
		if data, cached := e.imageCache[base.ID]; cached {
			img, err := imageio.Decode(data)
			if err != nil {
				return err
			}
			e.img = img
			e.imgData = data
			e.imageID = base.ID
			e.imageCache = map[string][]byte{base.ID: data}
		}
	}

	e.log.Info("workspace reset", "sessionsUsed", e.sessions.SessionsUsed())
	return nil
}

// CurrentImageData returns the bytes and source URL of the working image.
func (e *Engine) CurrentImageData() ([]byte, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var url string
	if cur, ok := e.sessions.CurrentImage(); ok {
		url = cur.URL
	}
	return e.imgData, url
}

// Profile returns the current overlay styling for a hotspot. Hotspots whose
// profile has not been computed yet get the neutral fallback.
func (e *Engine) Profile(id int) models.ColorProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.profiles[id]; ok {
		return p
	}
	return sampler.NeutralProfile
}

// FlushSampling recomputes profiles for every live hotspot synchronously,
// bypassing the debounce. State() calls it so a snapshot never shows the
// neutral fallback for a settled hotspot.
func (e *Engine) FlushSampling() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.hotspots.List() {
		e.profiles[h.ID] = e.sampler.Sample(h, e.img, e.imageID)
	}
}

// scheduleSample queues a debounced profile recomputation for the hotspot.
// Caller holds the lock.
func (e *Engine) scheduleSample(id int) {
	gen := e.generation
	e.debounce.Trigger(id, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.generation != gen {
			return
		}
		h, ok := e.hotspots.Get(id)
		if !ok {
			return
		}
		e.profiles[id] = e.sampler.Sample(h, e.img, e.imageID)
	})
}

// Snapshot captures persistable state for the session store.
func (e *Engine) Snapshot() *session.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.sessions.Snapshot()
	snap.Hotspots = e.hotspots.List()
	return snap
}

// Restore rehydrates the engine from a persisted snapshot. The working image
// is re-fetched lazily on the next Revert or Submit; only bookkeeping is
// restored here.
func (e *Engine) Restore(snap *session.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.debounce.CancelAll()
	e.sessions.Restore(snap)

	// the id floor covers every id the session has issued, including those
	// of already-processed phases, so restored workspaces never reuse one
	floor := 0
	if snap.Session != nil {
		for _, id := range snap.Session.TotalHotspotIDs {
			if id > floor {
				floor = id
			}
		}
	}
	e.hotspots.Replace(snap.Hotspots, floor)
	e.profiles = make(map[int]models.ColorProfile)
	for _, h := range snap.Hotspots {
		e.profiles[h.ID] = sampler.NeutralProfile
	}
	if cur, ok := e.sessions.CurrentImage(); ok {
		e.imageID = cur.ID
	}
}

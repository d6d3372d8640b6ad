package wizard

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"smile-preview-backend/internal/camera"
	"smile-preview-backend/internal/catalog"
	"smile-preview-backend/internal/editor"
	"smile-preview-backend/internal/geo"
	"smile-preview-backend/internal/leads"
	"smile-preview-backend/internal/photo"
	"smile-preview-backend/internal/session"
)

type Editor interface {
	EditImage(ctx context.Context, source, style editor.ImageRef, shadeHex string) (string, error)
}

type References interface {
	Load(ctx context.Context, style catalog.Style) (editor.ImageRef, error)
}

type LeadSubmitter interface {
	Submit(ctx context.Context, in leads.Input) (*leads.Submission, error)
}

type Deps struct {
	Editor     Editor
	References References
	Leads      LeadSubmitter
	Visitors   session.Store
	Camera     camera.Device
	Logger     zerolog.Logger
}

type captureRun struct {
	prompt *camera.Prompt
	cancel context.CancelFunc
}

type wizardSession struct {
	mu sync.Mutex

	id        string
	visitorID string
	flow      Flow

	// epoch changes on Reset; late callbacks from an older epoch are dropped.
	epoch        int
	step         Step
	selection    Selection
	photo        *photo.Asset
	job          *Job
	cancelJob    context.CancelFunc
	capture      *captureRun
	afterURL     string
	usedFallback bool
	gateOpen     bool
	submitting   bool
	lead         *leads.Submission
	lastError    string
}

// Manager owns every wizard session. Each session is driven only through
// Manager methods and guarded by its own mutex.
type Manager struct {
	sessions *cache.Cache
	deps     Deps
	opts     Options
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

func NewManager(deps Deps, opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		sessions: cache.New(opts.SessionTTL, opts.SessionTTL/2),
		deps:     deps,
		opts:     opts,
		logger:   deps.Logger.With().Str("component", "wizard").Logger(),
	}
	m.sessions.OnEvicted(func(id string, v interface{}) {
		v.(*wizardSession).abandon()
		m.logger.Debug().Str("session_id", id).Msg("session expired")
	})
	return m
}

func (m *Manager) Create(ctx context.Context, visitorID string, flow Flow) View {
	s := &wizardSession{
		id:        uuid.NewString(),
		visitorID: visitorID,
		flow:      flow,
	}
	s.start()
	m.sessions.Set(s.id, s, cache.DefaultExpiration)

	m.logger.Info().Str("session_id", s.id).Str("flow", string(flow)).Msg("session created")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (m *Manager) Get(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

func (m *Manager) SelectStyle(id, styleID string) (View, error) {
	if _, ok := catalog.StyleByID(styleID); !ok {
		return View{}, ErrUnknownOption
	}
	return m.selectOption(id, StepChooseStyle, func(sel *Selection) { sel.StyleID = styleID })
}

func (m *Manager) SelectShade(id, shadeID string) (View, error) {
	if _, ok := catalog.ShadeByID(shadeID); !ok {
		return View{}, ErrUnknownOption
	}
	return m.selectOption(id, StepChooseShade, func(sel *Selection) { sel.ShadeID = shadeID })
}

// selectOption records a choice and advances after the selection delay.
// Choosing again before the delay fires only changes the value.
func (m *Manager) selectOption(id string, step Step, set func(*Selection)) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.step != step {
		s.mu.Unlock()
		return View{}, ErrInvalidTransition
	}
	set(&s.selection)
	epoch := s.epoch
	s.mu.Unlock()

	m.after(m.opts.SelectionDelay, func() { m.advance(s, epoch, step) })
	return m.Get(id)
}

// UploadPhoto normalizes r and stores it as the session photo. Decode and
// canvas errors are returned so the visitor can try another file.
func (m *Manager) UploadPhoto(ctx context.Context, id string, r io.Reader) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.step != StepUploadPhoto {
		s.mu.Unlock()
		return View{}, ErrInvalidTransition
	}
	s.mu.Unlock()

	asset, err := photo.NormalizeToSquare(r, m.opts.EdgeLength, photo.OriginFile)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return View{}, err
	}

	if err := m.acceptPhoto(s, asset, -1); err != nil {
		return View{}, err
	}
	return m.Get(id)
}

// acceptPhoto stores asset if the session is still waiting for a photo and,
// when epoch is not -1, still in that epoch.
func (m *Manager) acceptPhoto(s *wizardSession, asset *photo.Asset, epoch int) error {
	s.mu.Lock()
	if s.step != StepUploadPhoto || (epoch >= 0 && s.epoch != epoch) {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.photo = asset
	s.lastError = ""
	current := s.epoch
	s.mu.Unlock()

	m.logger.Info().
		Str("session_id", s.id).
		Str("origin", string(asset.Origin)).
		Int("source_width", asset.SourceWidth).
		Int("source_height", asset.SourceHeight).
		Msg("photo normalized")

	m.after(m.opts.PhotoDelay, func() { m.advance(s, current, StepUploadPhoto) })
	return nil
}

// StartCapture opens the camera in the background. The operator finishes it
// with ConfirmCapture or CancelCapture.
func (m *Manager) StartCapture(id string) (View, error) {
	if m.deps.Camera == nil {
		return View{}, camera.ErrUnavailable
	}
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.step != StepUploadPhoto {
		s.mu.Unlock()
		return View{}, ErrInvalidTransition
	}
	if s.capture != nil {
		s.mu.Unlock()
		return View{}, ErrCaptureActive
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.CaptureTimeout)
	run := &captureRun{prompt: camera.NewPrompt(), cancel: cancel}
	s.capture = run
	epoch := s.epoch
	s.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		asset, err := camera.Capture(ctx, m.deps.Camera, m.opts.EdgeLength, run.prompt)

		s.mu.Lock()
		if s.capture == run {
			s.capture = nil
		}
		stale := s.epoch != epoch
		if err != nil && !stale && !errors.Is(err, camera.ErrCancelled) {
			s.lastError = err.Error()
		}
		s.mu.Unlock()

		switch {
		case stale:
		case errors.Is(err, camera.ErrCancelled):
			m.logger.Info().Str("session_id", s.id).Msg("camera capture cancelled")
		case err != nil:
			m.logger.Warn().Err(err).Str("session_id", s.id).Msg("camera capture failed")
		default:
			if err := m.acceptPhoto(s, asset, epoch); err != nil {
				m.logger.Debug().Err(err).Str("session_id", s.id).Msg("captured photo dropped")
			}
		}
	}()

	return m.Get(id)
}

func (m *Manager) ConfirmCapture(id string) (View, error) {
	return m.resolveCapture(id, camera.Confirm)
}

func (m *Manager) CancelCapture(id string) (View, error) {
	return m.resolveCapture(id, camera.Cancel)
}

func (m *Manager) resolveCapture(id string, d camera.Decision) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	run := s.capture
	s.mu.Unlock()
	if run == nil || !run.prompt.Resolve(d) {
		return View{}, ErrNoCapture
	}
	return m.Get(id)
}

// Generate enters the generating step if the session has everything it
// needs. It never starts a second job; with a job already present, or with
// the selection or photo missing, it is a no-op.
func (m *Manager) Generate(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step < StepResult && s.job == nil && s.ready() {
		s.step = StepGenerating
		m.startJobLocked(s)
	}
	return s.view(), nil
}

// advance moves from step to the next one if nothing else moved the session
// in the meantime.
func (m *Manager) advance(s *wizardSession, epoch int, from Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.step != from {
		return
	}
	switch from {
	case StepChooseStyle:
		if s.selection.StyleID != "" {
			s.step = StepChooseShade
		}
	case StepChooseShade:
		if s.selection.ShadeID != "" {
			s.step = StepUploadPhoto
		}
	case StepUploadPhoto:
		if s.photo == nil {
			return
		}
		s.step = StepGenerating
		if s.job == nil && s.ready() {
			m.startJobLocked(s)
		}
	}
}

// startJobLocked launches the single generation job of the session. s.mu
// must be held.
func (m *Manager) startJobLocked(s *wizardSession) {
	style, _ := catalog.StyleByID(s.selection.StyleID)
	shade, _ := catalog.ShadeByID(s.selection.ShadeID)

	job := &Job{
		ID:          uuid.NewString(),
		StyleID:     style.ID,
		ShadeHex:    shade.Hex,
		Status:      JobPending,
		SubmittedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.GenerationTimeout)
	s.job = job
	s.cancelJob = cancel
	epoch := s.epoch
	asset := s.photo

	m.logger.Info().
		Str("session_id", s.id).
		Str("job_id", job.ID).
		Str("style", style.ID).
		Str("shade", shade.Hex).
		Msg("generation started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		resultURL, err := m.edit(ctx, asset, style, shade.Hex)
		m.finishJob(s, epoch, job, resultURL, err)
	}()
}

func (m *Manager) edit(ctx context.Context, asset *photo.Asset, style catalog.Style, shadeHex string) (string, error) {
	ref, err := m.deps.References.Load(ctx, style)
	if err != nil {
		return "", &editor.ReferenceResolutionError{Err: err}
	}
	source := editor.Local(asset.Data, asset.ContentType, asset.FileName())
	return m.deps.Editor.EditImage(ctx, source, ref, shadeHex)
}

func (m *Manager) finishJob(s *wizardSession, epoch int, job *Job, resultURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || s.job != job {
		m.logger.Debug().Str("session_id", s.id).Str("job_id", job.ID).Msg("discarding result of abandoned job")
		return
	}

	now := time.Now().UTC()
	job.FinishedAt = &now
	s.cancelJob = nil

	if err != nil {
		job.Status = JobFailed
		job.Err = err.Error()
		s.afterURL = m.fallbackURL(s.flow)
		s.usedFallback = true
		m.logger.Warn().
			Err(err).
			Str("session_id", s.id).
			Str("job_id", job.ID).
			Bool("timeout", errors.Is(err, context.DeadlineExceeded)).
			Msg("generation failed, using fallback image")
	} else {
		job.Status = JobSucceeded
		job.ResultURL = resultURL
		s.afterURL = resultURL
		m.logger.Info().
			Str("session_id", s.id).
			Str("job_id", job.ID).
			Dur("elapsed", now.Sub(job.SubmittedAt)).
			Msg("generation succeeded")
	}

	s.step = StepResult
}

func (m *Manager) fallbackURL(flow Flow) string {
	if flow == FlowQuick {
		return m.opts.QuickFallbackURL
	}
	return m.opts.WizardFallbackURL
}

// SubmitLead validates and records the visitor's contact details and opens
// the gate. Persistence failures do not keep the gate closed. A second call
// while one is in flight gets ErrLeadPending.
func (m *Manager) SubmitLead(ctx context.Context, id string, form LeadForm) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.step != StepResult {
		s.mu.Unlock()
		return View{}, ErrInvalidTransition
	}
	if s.gateOpen {
		v := s.view()
		s.mu.Unlock()
		return v, nil
	}
	if s.submitting {
		s.mu.Unlock()
		return View{}, ErrLeadPending
	}
	s.submitting = true
	input := m.leadInput(ctx, s, form)
	epoch := s.epoch
	s.mu.Unlock()

	sub, err := m.deps.Leads.Submit(ctx, input)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.submitting = false
		}
		s.mu.Unlock()
		return View{}, err
	}

	if m.deps.Visitors != nil && s.visitorID != "" {
		if err := session.MarkSubmitted(ctx, m.deps.Visitors, s.visitorID); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.id).Msg("failed to record form submission")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.submitting = false
		s.lead = sub
		s.gateOpen = true
		s.lastError = ""
	}
	return s.view(), nil
}

// leadInput fills in what the funnel knows. s.mu must be held.
func (m *Manager) leadInput(ctx context.Context, s *wizardSession, form LeadForm) leads.Input {
	countryCode := strings.TrimSpace(form.CountryCode)
	if countryCode == "" && m.deps.Visitors != nil && s.visitorID != "" {
		if st, err := m.deps.Visitors.Load(ctx, s.visitorID); err == nil {
			countryCode = st.DialCode
		}
	}
	if countryCode == "" {
		countryCode = geo.DefaultDialCode
	}

	in := leads.Input{
		Name:        form.Name,
		Phone:       form.Phone,
		CountryCode: countryCode,
		Email:       form.Email,
		OutputURL:   s.afterURL,
	}

	if s.flow == FlowQuick {
		in.StyleLabel = catalog.QuickStyleLabel
		in.ShadeLabel = catalog.QuickShadeLabel
		in.FreeTreatment = form.FreeTreatment == nil || *form.FreeTreatment
		return in
	}

	if style, ok := catalog.StyleByID(s.selection.StyleID); ok {
		in.StyleLabel = style.Title
	}
	if shade, ok := catalog.ShadeByID(s.selection.ShadeID); ok {
		in.ShadeLabel = shade.Title
	}
	return in
}

// Reset drops photo, selection and job and returns to the first step. A
// running job is abandoned; its result is ignored when it arrives.
func (m *Manager) Reset(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	s.start()
	m.logger.Info().Str("session_id", s.id).Int("epoch", s.epoch).Msg("session reset")
	return s.view(), nil
}

// BeforeImage returns the normalized photo.
func (m *Manager) BeforeImage(id string) (*photo.Asset, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return nil, ErrNoPhoto
	}
	return s.photo, nil
}

// AfterURL returns the result image once the gate is open.
func (m *Manager) AfterURL(id string) (string, error) {
	s, err := m.session(id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepResult {
		return "", ErrInvalidTransition
	}
	if !s.gateOpen {
		return "", ErrGateLocked
	}
	return s.afterURL, nil
}

// Close abandons every session and waits for background work to finish.
func (m *Manager) Close() {
	for _, item := range m.sessions.Items() {
		item.Object.(*wizardSession).abandon()
	}
	m.wg.Wait()
}

// Wait blocks until all running jobs and captures have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) session(id string) (*wizardSession, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*wizardSession), nil
}

// after runs fn once delay has passed, or right away for a zero delay.
func (m *Manager) after(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	time.AfterFunc(delay, fn)
}

// start puts the session at the first step of its flow. s.mu must be held
// or the session not yet shared.
func (s *wizardSession) start() {
	s.step = StepChooseStyle
	s.selection = Selection{}
	if s.flow == FlowQuick {
		s.step = StepUploadPhoto
		s.selection = Selection{StyleID: catalog.QuickStyleID, ShadeID: catalog.QuickShadeID}
	}
	s.photo = nil
	s.job = nil
	s.afterURL = ""
	s.usedFallback = false
	s.gateOpen = false
	s.submitting = false
	s.lead = nil
	s.lastError = ""
}

// release cancels the job await and any camera capture. s.mu must be held.
func (s *wizardSession) release() {
	s.epoch++
	if s.cancelJob != nil {
		s.cancelJob()
		s.cancelJob = nil
	}
	if s.capture != nil {
		s.capture.prompt.Resolve(camera.Cancel)
		s.capture.cancel()
		s.capture = nil
	}
}

func (s *wizardSession) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}

func (s *wizardSession) ready() bool {
	return s.selection.complete() && s.photo != nil
}

// view copies the session. s.mu must be held.
func (s *wizardSession) view() View {
	v := View{
		ID:           s.id,
		VisitorID:    s.visitorID,
		Flow:         s.flow,
		Step:         s.step,
		Selection:    s.selection,
		HasPhoto:     s.photo != nil,
		Capturing:    s.capture != nil,
		Gated:        s.step == StepResult && !s.gateOpen,
		UsedFallback: s.usedFallback,
		LastError:    s.lastError,
	}
	if s.job != nil {
		v.Job = &JobView{
			ID:          s.job.ID,
			Status:      s.job.Status,
			SubmittedAt: s.job.SubmittedAt,
			FinishedAt:  s.job.FinishedAt,
			Error:       s.job.Err,
		}
	}
	if s.step == StepResult && s.gateOpen {
		v.AfterURL = s.afterURL
	}
	return v
}

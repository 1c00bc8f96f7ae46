// Package pipeline runs recording brackets from the microphone to the
// transcription service: capture, decode, WAV encode, upload.
//
// A Pipeline handles one bracket at a time. Start begins recording, Stop
// finalizes the capture and produces the WAV container, Upload sends it.
// Every step updates a short human-readable status.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/readaloud/internal/datalayer"
	"github.com/glizzus/readaloud/internal/decode"
	"github.com/glizzus/readaloud/internal/events"
	"github.com/glizzus/readaloud/internal/generator"
	"github.com/glizzus/readaloud/internal/metrics"
	"github.com/glizzus/readaloud/internal/mic"
	"github.com/glizzus/readaloud/internal/recorder"
	"github.com/glizzus/readaloud/internal/upload"
	"github.com/glizzus/readaloud/internal/wav"
)

var (
	ErrNoUserID        = errors.New("user ID is required")
	ErrClosed          = errors.New("pipeline is closed")
	ErrBusy            = errors.New("previous recording is still being processed")
	ErrNotRecording    = errors.New("no recording in progress")
	ErrNothingToUpload = errors.New("no finished recording to upload")
	ErrDiscarded       = errors.New("recording was discarded")
)

const publishTimeout = 5 * time.Second

type Option func(*Pipeline)

// WithArchive stores every uploaded recording in storage.
func WithArchive(storage datalayer.BlobStorage) Option {
	return func(p *Pipeline) {
		p.archive = storage
	}
}

// WithPublisher reports the outcome of every bracket to publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithIDGenerator replaces the UUIDv4 bracket IDs.
func WithIDGenerator(ids generator.Generator[string]) Option {
	return func(p *Pipeline) {
		p.ids = ids
	}
}

// WithStatusListener calls fn with every new status. fn runs while the
// pipeline is locked and must not call back into it.
func WithStatusListener(fn func(status string)) Option {
	return func(p *Pipeline) {
		p.listeners = append(p.listeners, fn)
	}
}

type Pipeline struct {
	userID   string
	session  *mic.Session
	recorder *recorder.Recorder
	decoder  decode.Decoder
	uploader upload.Uploader

	archive   datalayer.BlobStorage
	publisher events.Publisher
	metrics   *metrics.Metrics
	ids       generator.Generator[string]
	listeners []func(string)
	now       func() time.Time

	// ctx bounds capture and decode. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	status  string
	current *bracket
	closed  bool
}

func New(userID string, device mic.Device, decoder decode.Decoder, uploader upload.Uploader, opts ...Option) (*Pipeline, error) {
	if userID == "" {
		return nil, ErrNoUserID
	}

	session := mic.NewSession(device)
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		userID:   userID,
		session:  session,
		recorder: recorder.New(session),
		decoder:  decoder,
		uploader: uploader,
		ids:      &generator.UUIDV4Generator{},
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) UserID() string {
	return p.userID
}

func (p *Pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) SessionState() mic.State {
	return p.session.State()
}

// Bracket returns the current or most recent bracket.
func (p *Pipeline) Bracket() (BracketInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return BracketInfo{}, false
	}
	return p.current.info(), true
}

// Recording returns a copy of the encoded WAV while it is waiting to be
// uploaded.
func (p *Pipeline) Recording() (wav.Container, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.current
	if b == nil || (b.state != BracketEncoded && b.state != BracketUploadFailed) {
		return nil, false
	}
	return append(wav.Container(nil), b.container...), true
}

// Open asks for the microphone.
func (p *Pipeline) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.setStatusLocked(StatusRequesting)
	p.mu.Unlock()

	err := p.session.Open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err != nil {
		slog.Error("failed to open microphone", slog.String("userID", p.userID), slog.Any("error", err))
		p.setStatusLocked(StatusForError(err))
		return err
	}
	p.setStatusLocked(StatusReady)
	return nil
}

// Start begins a new bracket for task and returns its ID. An encoded or
// upload-failed bracket that was never uploaded is replaced.
func (p *Pipeline) Start(task Task) (string, error) {
	var pending []events.BracketEvent
	defer func() { p.publish(pending...) }()

	p.mu.Lock()
	err := p.startableLocked()
	p.mu.Unlock()
	if err != nil {
		return "", err
	}

	// A discarded bracket may still be flushing its capture.
	if err := p.recorder.Wait(p.ctx); err != nil {
		return "", ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.startableLocked(); err != nil {
		return "", err
	}

	id, err := p.ids.Next()
	if err != nil {
		return "", err
	}

	if err := p.recorder.Start(p.ctx); err != nil {
		p.setStatusLocked(StatusForError(err))
		return "", err
	}

	if prev := p.current; prev != nil && !prev.state.terminal() {
		prev.state = BracketDiscarded
		prev.container = nil
		pending = append(pending, p.eventLocked(prev, metrics.OutcomeDiscarded))
	}

	p.current = &bracket{id: id, task: task, state: BracketRecording}
	p.setStatusLocked(StatusRecording)
	slog.Debug("recording started", slog.String("bracketID", id), slog.Int("questionIndex", task.QuestionIndex))
	return id, nil
}

func (p *Pipeline) startableLocked() error {
	if p.closed {
		return ErrClosed
	}
	if b := p.current; b != nil && b.state.busy() {
		if b.state == BracketRecording {
			return recorder.ErrAlreadyRecording
		}
		return ErrBusy
	}
	return nil
}

// Stop ends the recording and runs decode and encode. The encoded bracket
// waits for Upload. If the bracket is discarded meanwhile, the remaining
// stages are skipped and ErrDiscarded is returned.
func (p *Pipeline) Stop() (BracketInfo, error) {
	var pending []events.BracketEvent
	defer func() { p.publish(pending...) }()

	p.mu.Lock()
	b := p.current
	if p.closed {
		p.mu.Unlock()
		return BracketInfo{}, ErrClosed
	}
	if b == nil || b.state != BracketRecording {
		p.mu.Unlock()
		return BracketInfo{}, ErrNotRecording
	}
	b.state = BracketProcessing
	p.setStatusLocked(StatusProcessing)
	p.mu.Unlock()

	blob, err := p.recorder.Stop()

	p.mu.Lock()
	if b.state == BracketDiscarded {
		info := b.info()
		p.mu.Unlock()
		return info, ErrDiscarded
	}
	if err != nil {
		pending = append(pending, p.failLocked(b, err))
		info := b.info()
		p.mu.Unlock()
		return info, err
	}
	b.captureBytes = len(blob)
	p.mu.Unlock()
	p.metrics.ObserveCapture(len(blob))

	start := p.now()
	audio, err := p.decoder.Decode(p.ctx, blob)
	elapsed := p.now().Sub(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	if b.state == BracketDiscarded {
		slog.Debug("dropping decode result of discarded recording", slog.String("bracketID", b.id))
		return b.info(), ErrDiscarded
	}
	if err != nil {
		var decodeErr *decode.Error
		if !errors.As(err, &decodeErr) {
			err = &decode.Error{Err: err}
		}
		slog.Warn("failed to decode recording", slog.String("bracketID", b.id), slog.Any("error", errors.Unwrap(err)))
		pending = append(pending, p.failLocked(b, err))
		return b.info(), err
	}
	if audio == nil {
		err := &decode.Error{Err: decode.ErrNoFrames}
		slog.Warn("decoder returned no audio", slog.String("bracketID", b.id))
		pending = append(pending, p.failLocked(b, err))
		return b.info(), err
	}
	b.duration = audio.Duration()
	p.metrics.ObserveDecode(elapsed, b.duration)

	container, err := wav.Encode(audio)
	if err != nil {
		slog.Error("WAV encoder rejected decoded audio", slog.String("bracketID", b.id), slog.Any("error", err))
		pending = append(pending, p.failLocked(b, err))
		return b.info(), err
	}

	b.container = container
	b.wavBytes = len(container)
	b.state = BracketEncoded
	p.metrics.ObserveEncode(len(container))
	p.setStatusLocked(StatusEncoded)
	return b.info(), nil
}

// Upload sends the encoded bracket. A failed upload keeps the recording so
// Upload can be called again. Nothing is retried automatically.
func (p *Pipeline) Upload(ctx context.Context) (*upload.Result, error) {
	var pending []events.BracketEvent
	defer func() { p.publish(pending...) }()

	p.mu.Lock()
	b := p.current
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if b == nil || (b.state != BracketEncoded && b.state != BracketUploadFailed) {
		p.mu.Unlock()
		if b != nil && b.state == BracketUploading {
			return nil, ErrBusy
		}
		return nil, ErrNothingToUpload
	}

	req, err := upload.NewRequest(b.container, b.task.Filename, b.task.Question, p.userID)
	if err != nil {
		pending = append(pending, p.failLocked(b, err))
		p.mu.Unlock()
		return nil, err
	}
	b.state = BracketUploading
	p.setStatusLocked(StatusUploading)
	p.mu.Unlock()

	start := p.now()
	result, err := p.uploader.Upload(ctx, req)
	p.metrics.ObserveUpload(p.now().Sub(start))

	p.mu.Lock()
	if err != nil {
		var uploadErr *upload.Error
		if !errors.As(err, &uploadErr) {
			err = &upload.Error{Err: err}
		}
		slog.Warn("failed to upload recording", slog.String("bracketID", b.id), slog.Any("error", err))
		b.err = err
		b.state = BracketUploadFailed
		p.setStatusLocked(StatusForError(err))
		pending = append(pending, p.eventLocked(b, metrics.OutcomeUploadFailed))
		p.mu.Unlock()
		return nil, err
	}

	container := b.container
	b.result = result
	b.err = nil
	b.container = nil
	b.state = BracketUploaded
	p.setStatusLocked(StatusUploaded)
	pending = append(pending, p.eventLocked(b, metrics.OutcomeUploaded))
	id := b.id
	p.mu.Unlock()

	slog.Info("recording uploaded", slog.String("bracketID", id), slog.String("userID", p.userID), slog.Int("wavBytes", len(container)))
	p.archiveRecording(ctx, id, container)
	return result, nil
}

// Submit is Stop followed by Upload.
func (p *Pipeline) Submit(ctx context.Context) (*upload.Result, error) {
	if _, err := p.Stop(); err != nil {
		return nil, err
	}
	return p.Upload(ctx)
}

// Discard drops the current bracket. A recording is stopped and thrown away;
// a decode in flight runs to completion but its result is ignored. Uploads
// cannot be discarded.
func (p *Pipeline) Discard() error {
	var pending []events.BracketEvent
	defer func() { p.publish(pending...) }()

	p.mu.Lock()
	b := p.current
	if b == nil || b.state.terminal() {
		p.mu.Unlock()
		return nil
	}
	if b.state == BracketUploading {
		p.mu.Unlock()
		return ErrBusy
	}
	wasRecording := b.state == BracketRecording
	b.state = BracketDiscarded
	b.container = nil
	p.setStatusLocked(StatusDiscarded)
	pending = append(pending, p.eventLocked(b, metrics.OutcomeDiscarded))
	p.mu.Unlock()

	if wasRecording {
		p.stopRecorder()
	}
	return nil
}

// Close releases the microphone and cancels in-flight capture and decode. It
// is safe to call more than once.
func (p *Pipeline) Close() error {
	var pending []events.BracketEvent
	defer func() { p.publish(pending...) }()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	wasRecording := false
	if b := p.current; b != nil && !b.state.terminal() && b.state != BracketUploading {
		wasRecording = b.state == BracketRecording
		b.state = BracketDiscarded
		b.container = nil
		pending = append(pending, p.eventLocked(b, metrics.OutcomeDiscarded))
	}
	p.setStatusLocked(StatusClosed)
	p.mu.Unlock()

	p.session.Close()
	p.cancel()
	if wasRecording {
		p.stopRecorder()
	}
	return nil
}

func (p *Pipeline) stopRecorder() {
	_, err := p.recorder.Stop()
	if err != nil && !errors.Is(err, recorder.ErrEmptyRecording) && !errors.Is(err, recorder.ErrNotRecording) {
		slog.Warn("failed to stop discarded recording", slog.Any("error", err))
	}
}

func (p *Pipeline) setStatusLocked(status string) {
	p.status = status
	for _, listener := range p.listeners {
		listener(status)
	}
}

func (p *Pipeline) failLocked(b *bracket, err error) events.BracketEvent {
	b.err = err
	b.state = BracketFailed
	b.container = nil
	p.setStatusLocked(StatusForError(err))
	return p.eventLocked(b, outcomeFor(err))
}

func outcomeFor(err error) string {
	var (
		decodeErr *decode.Error
		invariant *wav.InvariantError
		uploadErr *upload.Error
	)
	switch {
	case errors.Is(err, recorder.ErrEmptyRecording), errors.Is(err, upload.ErrEmptyAudio):
		return metrics.OutcomeEmpty
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecodeFailed
	case errors.As(err, &invariant):
		return metrics.OutcomeEncodeFailed
	case errors.As(err, &uploadErr):
		return metrics.OutcomeUploadFailed
	default:
		return metrics.OutcomeCaptureFailed
	}
}

func (p *Pipeline) eventLocked(b *bracket, outcome string) events.BracketEvent {
	p.metrics.ObserveOutcome(outcome)

	e := events.BracketEvent{
		BracketID:     b.id,
		UserID:        p.userID,
		QuestionIndex: b.task.QuestionIndex,
		Outcome:       outcome,
		Status:        p.status,
		CaptureBytes:  b.captureBytes,
		WAVBytes:      b.wavBytes,
		At:            p.now().UTC(),
	}
	if b.err != nil {
		e.Error = b.err.Error()
	}
	if b.result != nil {
		e.Transcription = b.result.Transcription
	}
	return e
}

func (p *Pipeline) publish(evts ...events.BracketEvent) {
	if p.publisher == nil || len(evts) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.publisher.Publish(ctx, evts...); err != nil {
		slog.Warn("failed to publish bracket events", slog.Int("count", len(evts)), slog.Any("error", err))
	}
}

func (p *Pipeline) archiveRecording(ctx context.Context, bracketID string, container wav.Container) {
	if p.archive == nil {
		return
	}
	key := datalayer.RecordingKey(p.userID, bracketID)
	err := p.archive.Put(ctx, key, bytes.NewReader(container), datalayer.PutOptions{
		Size:        int64(len(container)),
		ContentType: "audio/wav",
	})
	if err != nil {
		slog.Error("failed to archive recording", slog.String("key", key), slog.Any("error", err))
	}
}

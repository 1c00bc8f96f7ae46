package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/readaloud/internal/datalayer"
	"github.com/glizzus/readaloud/internal/decode"
	"github.com/glizzus/readaloud/internal/events"
	"github.com/glizzus/readaloud/internal/generator"
	"github.com/glizzus/readaloud/internal/mic"
	"github.com/glizzus/readaloud/internal/mic/mictest"
	"github.com/glizzus/readaloud/internal/pcm"
	"github.com/glizzus/readaloud/internal/pipeline"
	"github.com/glizzus/readaloud/internal/recorder"
	"github.com/glizzus/readaloud/internal/upload"
	"github.com/glizzus/readaloud/internal/wav"
	"github.com/google/go-cmp/cmp"
)

func silence(rate, frames int) *pcm.Audio {
	return &pcm.Audio{SampleRate: rate, Channels: [][]float32{make([]float32, frames)}}
}

func constantDecoder(audio *pcm.Audio) (decode.Decoder, *int) {
	calls := 0
	return decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		calls++
		return audio, nil
	}), &calls
}

type fakeUploader struct {
	mu       sync.Mutex
	requests []*upload.Request
	errs     []error
	result   *upload.Result
}

func (u *fakeUploader) Upload(ctx context.Context, req *upload.Request) (*upload.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = append(u.requests, req)
	if len(u.errs) > 0 {
		err := u.errs[0]
		u.errs = u.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if u.result != nil {
		return u.result, nil
	}
	return &upload.Result{Transcription: "ok"}, nil
}

type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLog) record(status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
}

func (l *statusLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.statuses...)
}

func newPipeline(t *testing.T, device mic.Device, decoder decode.Decoder, uploader upload.Uploader, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	opts = append([]pipeline.Option{pipeline.WithIDGenerator(&generator.Sequence{Prefix: "bracket"})}, opts...)
	p, err := pipeline.New("user-1", device, decoder, uploader, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func openPipeline(t *testing.T, device mic.Device, decoder decode.Decoder, uploader upload.Uploader, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p := newPipeline(t, device, decoder, uploader, opts...)
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	return p
}

func TestNewRequiresUserID(t *testing.T) {
	decoder, _ := constantDecoder(silence(48000, 1))
	if _, err := pipeline.New("", &mictest.Device{}, decoder, &fakeUploader{}); !errors.Is(err, pipeline.ErrNoUserID) {
		t.Errorf("New error = %v, want ErrNoUserID", err)
	}
}

func TestFullBracket(t *testing.T) {
	device := &mictest.Device{
		Fragments: [][]byte{[]byte("OggS-a"), []byte("OggS-b")},
		Trailer:   [][]byte{[]byte("OggS-eos")},
	}
	var blobs [][]byte
	decoder := decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		blobs = append(blobs, blob)
		return silence(44100, 44100), nil
	})
	uploader := &fakeUploader{result: &upload.Result{Transcription: "I like to play outside with my friends."}}
	publisher := &events.MemoryPublisher{}
	archive := datalayer.NewMemoryStorage()
	statuses := &statusLog{}

	p := newPipeline(t, device, decoder, uploader,
		pipeline.WithPublisher(publisher),
		pipeline.WithArchive(archive),
		pipeline.WithStatusListener(statuses.record),
	)
	if got := p.Status(); got != pipeline.StatusIdle {
		t.Errorf("Status() = %q, want %q", got, pipeline.StatusIdle)
	}
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	task := pipeline.Task{QuestionIndex: 0, Question: "I like to play outside with my friends.", Filename: upload.FilenameForQuestion(0)}
	id, err := p.Start(task)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if id != "bracket-1" {
		t.Errorf("Start() ID = %q, want %q", id, "bracket-1")
	}

	info, err := p.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if diff := cmp.Diff([][]byte{[]byte("OggS-aOggS-bOggS-eos")}, blobs); diff != "" {
		t.Errorf("decoded blobs mismatch (-want +got):\n%s", diff)
	}
	if info.State != pipeline.BracketEncoded || info.WAVBytes != 44116 || info.CaptureBytes != 20 {
		t.Errorf("unexpected bracket after Stop: %+v", info)
	}

	container, ok := p.Recording()
	if !ok {
		t.Fatal("Recording() returned no container after Stop")
	}
	header, err := container.Header()
	if err != nil {
		t.Fatalf("Header returned error: %v", err)
	}
	if header.DataSize != 88200 || header.SampleRate != 44100 || header.NumChannels != 1 {
		t.Errorf("unexpected header: %+v", header)
	}

	result, err := p.Upload(context.Background())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if result.Transcription != "I like to play outside with my friends." {
		t.Errorf("Transcription = %q", result.Transcription)
	}

	req := uploader.requests[0]
	if req.Filename() != "question_1.wav" || req.Question() != task.Question || req.UserID() != "user-1" {
		t.Errorf("unexpected upload request: %q %q %q", req.Filename(), req.Question(), req.UserID())
	}

	wantStatuses := []string{
		pipeline.StatusRequesting,
		pipeline.StatusReady,
		pipeline.StatusRecording,
		pipeline.StatusProcessing,
		pipeline.StatusEncoded,
		pipeline.StatusUploading,
		pipeline.StatusUploaded,
	}
	if diff := cmp.Diff(wantStatuses, statuses.all()); diff != "" {
		t.Errorf("status sequence mismatch (-want +got):\n%s", diff)
	}

	if _, ok := p.Recording(); ok {
		t.Error("Recording() still holds audio after a successful upload")
	}
	data, contentType, ok := archive.Get(datalayer.RecordingKey("user-1", "bracket-1"))
	if !ok || len(data) != 44116 || contentType != "audio/wav" {
		t.Errorf("archived recording = %d bytes, %q, %v", len(data), contentType, ok)
	}

	evts := publisher.Events()
	if len(evts) != 1 {
		t.Fatalf("got %d events, want 1", len(evts))
	}
	if evts[0].Outcome != "uploaded" || evts[0].BracketID != "bracket-1" || evts[0].WAVBytes != 44116 {
		t.Errorf("unexpected event: %+v", evts[0])
	}
}

func TestEmptyRecordingSkipsDecoder(t *testing.T) {
	decoder, calls := constantDecoder(silence(48000, 480))
	publisher := &events.MemoryPublisher{}
	p := openPipeline(t, &mictest.Device{}, decoder, &fakeUploader{}, pipeline.WithPublisher(publisher))

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err := p.Stop()
	if !errors.Is(err, recorder.ErrEmptyRecording) {
		t.Fatalf("Stop error = %v, want ErrEmptyRecording", err)
	}
	if *calls != 0 {
		t.Errorf("decoder called %d times, want 0", *calls)
	}
	if got := p.Status(); got != "Recording was too short. Please try again." {
		t.Errorf("Status() = %q", got)
	}
	if info, _ := p.Bracket(); info.State != pipeline.BracketFailed {
		t.Errorf("bracket state = %s, want %s", info.State, pipeline.BracketFailed)
	}
	if _, err := p.Upload(context.Background()); !errors.Is(err, pipeline.ErrNothingToUpload) {
		t.Errorf("Upload error = %v, want ErrNothingToUpload", err)
	}
	if evts := publisher.Events(); len(evts) != 1 || evts[0].Outcome != "empty_recording" {
		t.Errorf("unexpected events: %+v", evts)
	}

	// The bracket is discarded; recording again works.
	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Errorf("Start after empty recording returned error: %v", err)
	}
}

func TestDecodeFailure(t *testing.T) {
	cause := errors.New("invalid data found when processing input")
	decoder := decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		return nil, cause
	})
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("garbage")}}, decoder, &fakeUploader{})

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err := p.Stop()

	var decodeErr *decode.Error
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *decode.Error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("decode error does not wrap the cause: %v", err)
	}
	if err.Error() != "unable to decode captured audio" {
		t.Errorf("Error() = %q", err.Error())
	}
	if got := p.Status(); got != "Error converting to WAV. Please try again." {
		t.Errorf("Status() = %q", got)
	}
}

func TestEncodeInvariantViolation(t *testing.T) {
	broken := &pcm.Audio{SampleRate: 48000, Channels: [][]float32{make([]float32, 10), make([]float32, 9)}}
	decoder, _ := constantDecoder(broken)
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, &fakeUploader{})

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err := p.Stop()

	var invariant *wav.InvariantError
	if !errors.As(err, &invariant) {
		t.Fatalf("expected *wav.InvariantError, got %v", err)
	}
	if got := p.Status(); got != pipeline.StatusEncoderDefect {
		t.Errorf("Status() = %q, want %q", got, pipeline.StatusEncoderDefect)
	}
}

func TestUploadFailureKeepsRecording(t *testing.T) {
	decoder, calls := constantDecoder(silence(48000, 4800))
	uploader := &fakeUploader{errs: []error{&upload.Error{StatusCode: 500}}}
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, uploader)

	if _, err := p.Start(pipeline.Task{Question: "q"}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := p.Submit(context.Background()); err == nil {
		t.Fatal("expected the first upload to fail")
	}
	if got := p.Status(); got != "Error: server error: 500" {
		t.Errorf("Status() = %q, want %q", got, "Error: server error: 500")
	}
	info, _ := p.Bracket()
	if info.State != pipeline.BracketUploadFailed {
		t.Errorf("bracket state = %s, want %s", info.State, pipeline.BracketUploadFailed)
	}
	if _, ok := p.Recording(); !ok {
		t.Error("Recording() lost the audio after a failed upload")
	}

	if _, err := p.Upload(context.Background()); err != nil {
		t.Fatalf("second Upload returned error: %v", err)
	}
	if *calls != 1 {
		t.Errorf("decoder called %d times, want 1", *calls)
	}
	if len(uploader.requests) != 2 {
		t.Errorf("uploader called %d times, want 2", len(uploader.requests))
	}
	if diff := cmp.Diff([]byte(uploader.requests[0].Audio()), []byte(uploader.requests[1].Audio())); diff != "" {
		t.Errorf("retried upload carried different audio (-want +got):\n%s", diff)
	}
}

func TestUploadTransportErrorStatus(t *testing.T) {
	decoder, _ := constantDecoder(silence(48000, 480))
	uploader := &fakeUploader{errs: []error{errors.New("connection refused")}}
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, uploader)

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err := p.Submit(context.Background())
	var uploadErr *upload.Error
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected *upload.Error, got %v", err)
	}
	if got := p.Status(); got != "Error: connection refused" {
		t.Errorf("Status() = %q", got)
	}
}

func TestStartWhileProcessing(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	decoder := decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		started <- struct{}{}
		<-release
		return silence(48000, 480), nil
	})
	publisher := &events.MemoryPublisher{}
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, &fakeUploader{}, pipeline.WithPublisher(publisher))

	if _, err := p.Start(pipeline.Task{QuestionIndex: 0}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	stopErr := make(chan error, 1)
	go func() {
		_, err := p.Stop()
		stopErr <- err
	}()
	<-started

	if _, err := p.Start(pipeline.Task{QuestionIndex: 0}); !errors.Is(err, pipeline.ErrBusy) {
		t.Fatalf("Start during decode error = %v, want ErrBusy", err)
	}

	if err := p.Discard(); err != nil {
		t.Fatalf("Discard returned error: %v", err)
	}
	id, err := p.Start(pipeline.Task{QuestionIndex: 0})
	if err != nil {
		t.Fatalf("Start after Discard returned error: %v", err)
	}

	close(release)
	if err := <-stopErr; !errors.Is(err, pipeline.ErrDiscarded) {
		t.Errorf("discarded Stop error = %v, want ErrDiscarded", err)
	}

	info, _ := p.Bracket()
	if info.ID != id || info.State != pipeline.BracketRecording {
		t.Errorf("discarded decode touched the new bracket: %+v", info)
	}

	if _, err := p.Stop(); err != nil {
		t.Fatalf("Stop of retake returned error: %v", err)
	}
	if evts := publisher.Events(); len(evts) != 1 || evts[0].Outcome != "discarded" || evts[0].BracketID != "bracket-1" {
		t.Errorf("unexpected events: %+v", evts)
	}
}

func TestRetakeWhileCaptureIsFlushing(t *testing.T) {
	hold := make(chan struct{})
	device := &mictest.Device{
		Fragments:   [][]byte{[]byte("OggS-a")},
		Trailer:     [][]byte{[]byte("OggS-eos")},
		HoldTrailer: hold,
	}
	decoder, calls := constantDecoder(silence(48000, 480))
	p := openPipeline(t, device, decoder, &fakeUploader{})

	if _, err := p.Start(pipeline.Task{QuestionIndex: 0}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	stopErr := make(chan error, 1)
	go func() {
		_, err := p.Stop()
		stopErr <- err
	}()
	for {
		if info, _ := p.Bracket(); info.State == pipeline.BracketProcessing {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := p.Discard(); err != nil {
		t.Fatalf("Discard returned error: %v", err)
	}

	type started struct {
		id  string
		err error
	}
	startResult := make(chan started, 1)
	go func() {
		id, err := p.Start(pipeline.Task{QuestionIndex: 0})
		startResult <- started{id, err}
	}()

	select {
	case res := <-startResult:
		t.Fatalf("Start returned before the capture finished: %q, %v", res.id, res.err)
	case <-time.After(20 * time.Millisecond):
	}
	close(hold)

	res := <-startResult
	if res.err != nil {
		t.Fatalf("Start after Discard returned error: %v", res.err)
	}
	if err := <-stopErr; !errors.Is(err, pipeline.ErrDiscarded) {
		t.Errorf("discarded Stop error = %v, want ErrDiscarded", err)
	}
	if got := p.Status(); got != pipeline.StatusRecording {
		t.Errorf("Status() = %q, want %q", got, pipeline.StatusRecording)
	}
	info, _ := p.Bracket()
	if info.ID != res.id || info.State != pipeline.BracketRecording {
		t.Errorf("current bracket = %+v, want %s recording", info, res.id)
	}

	if _, err := p.Stop(); err != nil {
		t.Fatalf("Stop of retake returned error: %v", err)
	}
	if *calls != 1 {
		t.Errorf("decoder called %d times, want 1", *calls)
	}
}

func TestDecoderReturningNoAudio(t *testing.T) {
	decoder := decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		return nil, nil
	})
	publisher := &events.MemoryPublisher{}
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, &fakeUploader{}, pipeline.WithPublisher(publisher))

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err := p.Stop()

	var decodeErr *decode.Error
	if !errors.As(err, &decodeErr) || !errors.Is(err, decode.ErrNoFrames) {
		t.Fatalf("Stop error = %v, want decode.Error wrapping ErrNoFrames", err)
	}
	if got := p.Status(); got != pipeline.StatusConversionFailed {
		t.Errorf("Status() = %q, want %q", got, pipeline.StatusConversionFailed)
	}
	if evts := publisher.Events(); len(evts) != 1 || evts[0].Outcome != "decode_failed" {
		t.Errorf("unexpected events: %+v", evts)
	}
}

func TestRetakeReplacesEncodedBracket(t *testing.T) {
	decoder, _ := constantDecoder(silence(48000, 480))
	publisher := &events.MemoryPublisher{}
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, &fakeUploader{}, pipeline.WithPublisher(publisher))

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := p.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("retake Start returned error: %v", err)
	}

	info, _ := p.Bracket()
	if info.ID != "bracket-2" {
		t.Errorf("current bracket = %q, want bracket-2", info.ID)
	}
	if evts := publisher.Events(); len(evts) != 1 || evts[0].BracketID != "bracket-1" || evts[0].Outcome != "discarded" {
		t.Errorf("unexpected events: %+v", evts)
	}
}

func TestDiscardWhileRecording(t *testing.T) {
	decoder, calls := constantDecoder(silence(48000, 480))
	device := &mictest.Device{Fragments: [][]byte{[]byte("x")}}
	p := openPipeline(t, device, decoder, &fakeUploader{})

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := p.Discard(); err != nil {
		t.Fatalf("Discard returned error: %v", err)
	}
	if got := p.SessionState(); got != mic.StateReady {
		t.Errorf("SessionState() = %s, want %s", got, mic.StateReady)
	}
	if _, err := p.Stop(); !errors.Is(err, pipeline.ErrNotRecording) {
		t.Errorf("Stop after Discard error = %v, want ErrNotRecording", err)
	}
	if *calls != 0 {
		t.Errorf("decoder called %d times, want 0", *calls)
	}
	if err := p.Discard(); err != nil {
		t.Errorf("second Discard returned error: %v", err)
	}
}

func TestPermissionDenied(t *testing.T) {
	decoder, _ := constantDecoder(silence(48000, 480))
	device := &mictest.Device{AcquireErr: errors.New("NotAllowedError")}
	p := newPipeline(t, device, decoder, &fakeUploader{})

	err := p.Open(context.Background())
	var denied *mic.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	want := "Error: capture device unavailable: NotAllowedError. Please check microphone permissions"
	if got := p.Status(); got != want {
		t.Errorf("Status() = %q, want %q", got, want)
	}

	if _, err := p.Start(pipeline.Task{}); !errors.Is(err, mic.ErrInvalidState) {
		t.Errorf("Start error = %v, want ErrInvalidState", err)
	}
	if device.Active() != 0 || device.Records() != 0 {
		t.Errorf("Active() = %d, Records() = %d, want 0, 0", device.Active(), device.Records())
	}
	if got := p.SessionState(); got != mic.StatePermissionDenied {
		t.Errorf("SessionState() = %s, want %s", got, mic.StatePermissionDenied)
	}
}

func TestCloseReleasesMicrophone(t *testing.T) {
	decoder, calls := constantDecoder(silence(48000, 480))
	device := &mictest.Device{Fragments: [][]byte{[]byte("x")}}
	publisher := &events.MemoryPublisher{}
	p := openPipeline(t, device, decoder, &fakeUploader{}, pipeline.WithPublisher(publisher))

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	for range 3 {
		if err := p.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
	}

	if device.Active() != 0 {
		t.Errorf("Active() = %d after Close, want 0", device.Active())
	}
	if got := p.SessionState(); got != mic.StateClosed {
		t.Errorf("SessionState() = %s, want %s", got, mic.StateClosed)
	}
	if got := p.Status(); got != pipeline.StatusClosed {
		t.Errorf("Status() = %q, want %q", got, pipeline.StatusClosed)
	}
	if _, err := p.Start(pipeline.Task{}); !errors.Is(err, pipeline.ErrClosed) {
		t.Errorf("Start after Close error = %v, want ErrClosed", err)
	}
	if _, err := p.Stop(); !errors.Is(err, pipeline.ErrClosed) {
		t.Errorf("Stop after Close error = %v, want ErrClosed", err)
	}
	if *calls != 0 {
		t.Errorf("decoder called %d times, want 0", *calls)
	}
	if evts := publisher.Events(); len(evts) != 1 || evts[0].Outcome != "discarded" {
		t.Errorf("unexpected events: %+v", evts)
	}
}

func TestCloseDuringDecode(t *testing.T) {
	started := make(chan struct{})
	decoder := decode.Func(func(ctx context.Context, blob []byte) (*pcm.Audio, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	device := &mictest.Device{Fragments: [][]byte{[]byte("x")}}
	p := openPipeline(t, device, decoder, &fakeUploader{})

	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	stopErr := make(chan error, 1)
	go func() {
		_, err := p.Stop()
		stopErr <- err
	}()
	<-started

	p.Close()
	if err := <-stopErr; !errors.Is(err, pipeline.ErrDiscarded) {
		t.Errorf("Stop error = %v, want ErrDiscarded", err)
	}
	if device.Active() != 0 {
		t.Errorf("Active() = %d after Close, want 0", device.Active())
	}
}

func TestGuards(t *testing.T) {
	decoder, _ := constantDecoder(silence(48000, 480))
	p := openPipeline(t, &mictest.Device{Fragments: [][]byte{[]byte("x")}}, decoder, &fakeUploader{})

	if _, err := p.Stop(); !errors.Is(err, pipeline.ErrNotRecording) {
		t.Errorf("Stop before Start error = %v, want ErrNotRecording", err)
	}
	if _, err := p.Upload(context.Background()); !errors.Is(err, pipeline.ErrNothingToUpload) {
		t.Errorf("Upload before Start error = %v, want ErrNothingToUpload", err)
	}
	if _, err := p.Start(pipeline.Task{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := p.Start(pipeline.Task{}); !errors.Is(err, recorder.ErrAlreadyRecording) {
		t.Errorf("Start while recording error = %v, want ErrAlreadyRecording", err)
	}
	if _, err := p.Upload(context.Background()); !errors.Is(err, pipeline.ErrNothingToUpload) {
		t.Errorf("Upload while recording error = %v, want ErrNothingToUpload", err)
	}
}

func TestStatusForError(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want string
	}{
		{"permission denied", &mic.PermissionDeniedError{Reason: errors.New("NotAllowedError")}, "Error: capture device unavailable: NotAllowedError. Please check microphone permissions"},
		{"empty recording", recorder.ErrEmptyRecording, "Recording was too short. Please try again."},
		{"decode failure", &decode.Error{Err: errors.New("x")}, "Error converting to WAV. Please try again."},
		{"encoder defect", &wav.InvariantError{Err: pcm.ErrNoChannels}, "Internal error while encoding audio."},
		{"server error", &upload.Error{StatusCode: 503}, "Error: server error: 503"},
		{"transport error", &upload.Error{Err: errors.New("timeout")}, "Error: timeout"},
		{"other", errors.New("boom"), "Error: boom"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := pipeline.StatusForError(tt.err); got != tt.want {
				t.Errorf("StatusForError() = %q, want %q", got, tt.want)
			}
		})
	}
}

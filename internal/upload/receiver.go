package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/internal/utils/validator"
	"github.com/feichai0017/document-ingest/pkg/checksum"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

// FileField is the only multipart field that is stored.
const FileField = "file"

var errLimitExceeded = errors.New("file exceeds the upload size limit")

// Result describes a fully stored file.
type Result struct {
	OriginalName string
	MimeType     string
	Size         int64
	Checksum     string
	Location     storage.Location
}

// Receiver streams the single file part of a multipart body into storage,
// hashing it on the way.
type Receiver struct {
	storage  storage.Storage
	maxBytes int64
	logger   logger.Logger
}

func NewReceiver(store storage.Storage, maxBytes int64, log logger.Logger) *Receiver {
	return &Receiver{
		storage:  store,
		maxBytes: maxBytes,
		logger:   log,
	}
}

// MaxBytes is the per-file size limit.
func (r *Receiver) MaxBytes() int64 {
	return r.maxBytes
}

// Receive parses body and stores its "file" part under documentID.
//
// onAllocate is called with the storage location as soon as it exists, before
// any byte is written, so the caller can clean it up whatever happens next.
// Receive does not delete anything itself. It returns only after the
// pipeline has stopped touching storage, even when ctx is cancelled first.
// If body is an io.Closer it is closed on cancellation to unblock a pending
// read.
func (r *Receiver) Receive(
	ctx context.Context,
	contentType string,
	body io.Reader,
	documentID string,
	onAllocate func(storage.Location),
) (*Result, error) {
	boundary, err := validator.ValidateContentType(contentType)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, r.logger)

	p := &pipeline{
		receiver:   r,
		documentID: documentID,
		onAllocate: onAllocate,
		body:       &bodyReader{ctx: ctx, r: body},
	}

	if c, ok := body.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	guard := &settleGuard{}
	done := make(chan struct{})

	go func() {
		defer close(done)

		res, err := p.run(ctx, multipart.NewReader(p.body, boundary))
		var settled bool
		if err != nil {
			settled = guard.fail(p.classify(ctx, err))
		} else {
			settled = guard.succeed(res)
		}
		if !settled {
			log.Debug("Late upload outcome ignored", logger.Bool("succeeded", err == nil))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		guard.fail(models.NewError(models.KindClientAborted, "Upload aborted by client", nil, ctx.Err()))
		<-done
	}

	res, err := guard.outcome()
	if err != nil {
		return nil, err
	}

	log.Info("File received",
		logger.String("original_name", res.OriginalName),
		logger.String("mime_type", res.MimeType),
		logger.Int64("size", res.Size),
		logger.String("checksum", res.Checksum),
	)
	return res, nil
}

// pipeline holds the state of one Receive call. It is only touched by the
// pipeline goroutine.
type pipeline struct {
	receiver   *Receiver
	documentID string
	onAllocate func(storage.Location)

	body *bodyReader
	file *fileReader
}

func (p *pipeline) run(ctx context.Context, mr *multipart.Reader) (*Result, error) {
	var res *Result

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewError(models.KindMalformedPayload, "Malformed multipart payload", nil, err)
		}

		if part.FormName() != FileField || !hasFilename(part) {
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, models.NewError(models.KindMalformedPayload, "Malformed multipart payload", nil, err)
			}
			continue
		}

		if res != nil {
			return nil, models.NewError(models.KindTooManyFiles, "Only one file may be uploaded per request", nil, nil)
		}

		// failed parts are not closed: Close drains the rest of the part
		res, err = p.store(ctx, part)
		if err != nil {
			return nil, err
		}
		part.Close()
	}

	if res == nil {
		return nil, models.NewError(models.KindMissingFile, "No file provided in field \"file\"", nil, nil)
	}
	return res, nil
}

// hasFilename reports whether the part carries a filename parameter, even an
// empty one. FileName cannot tell the two apart.
func hasFilename(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func (p *pipeline) store(ctx context.Context, part *multipart.Part) (*Result, error) {
	name := validator.SanitizeFilename(part.FileName())
	if name == "" {
		return nil, models.NewError(models.KindMissingFilename, "Uploaded file must include a filename", nil, nil)
	}
	mimeType := validator.MimeType(part.Header.Get("Content-Type"))

	loc, err := p.receiver.storage.Allocate(ctx, p.documentID, name)
	if err != nil {
		return nil, err
	}
	if p.onAllocate != nil {
		p.onAllocate(loc)
	}

	p.file = &fileReader{r: part, limit: p.receiver.maxBytes}
	hasher := checksum.NewTransform(p.file)

	written, err := p.receiver.storage.Write(ctx, loc, hasher)
	if err != nil {
		return nil, err
	}

	digest, err := hasher.Finalize()
	if err != nil {
		return nil, models.NewError(models.KindInvariantViolation, "Checksum could not be finalized", nil, err)
	}
	if digest.Bytes != written {
		return nil, models.NewError(models.KindInvariantViolation,
			fmt.Sprintf("stored %d bytes but hashed %d", written, digest.Bytes), nil, nil)
	}

	return &Result{
		OriginalName: name,
		MimeType:     mimeType,
		Size:         digest.Bytes,
		Checksum:     digest.Checksum,
		Location:     loc,
	}, nil
}

// classify picks the kind reported for a failed pipeline. The size limit
// wins over everything else, then transport failures, then parse failures.
// Anything else (storage, invariants) is reported as is.
func (p *pipeline) classify(ctx context.Context, err error) error {
	if p.file != nil && p.file.exceeded {
		limit := p.receiver.maxBytes
		return models.NewError(models.KindPayloadTooLarge,
			fmt.Sprintf("File exceeds the maximum upload size of %d bytes", limit),
			map[string]any{
				"limitBytes": limit,
				"limitMb":    limit / (1024 * 1024),
			}, errLimitExceeded)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.NewError(models.KindClientAborted, "Upload aborted by client", nil, ctxErr)
	}
	if p.body.err != nil {
		return models.NewError(models.KindClientAborted, "Upload aborted by client", nil, p.body.err)
	}

	if p.file != nil && p.file.err != nil {
		return models.NewError(models.KindMalformedPayload, "Malformed multipart payload", nil, p.file.err)
	}

	var e *models.Error
	if errors.As(err, &e) {
		return err
	}
	return models.NewError(models.KindInternal, "Internal Server Error", nil, err)
}

// bodyReader remembers transport errors from the raw request body so they
// can be told apart from storage and parse errors.
type bodyReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		b.err = err
		return 0, err
	}

	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}

// fileReader enforces the size limit on one file part. A chunk that would
// cross the limit is dropped, so storage never receives more than limit
// bytes.
type fileReader struct {
	r        io.Reader
	limit    int64
	n        int64
	exceeded bool
	err      error
}

func (f *fileReader) Read(p []byte) (int, error) {
	if f.exceeded {
		return 0, errLimitExceeded
	}

	n, err := f.r.Read(p)
	if f.n+int64(n) > f.limit {
		f.exceeded = true
		return 0, errLimitExceeded
	}
	f.n += int64(n)

	if err != nil && err != io.EOF {
		f.err = err
	}
	return n, err
}

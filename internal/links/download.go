package links

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sundayezeilo/filelinks/internal/errx"
	"github.com/sundayezeilo/filelinks/internal/httpx"
)

const fallbackContentType = "application/octet-stream"

var tracer = otel.Tracer("github.com/sundayezeilo/filelinks/internal/links")

// ServeDownload streams the file behind the token in the request path.
// Every failure before the first byte is written looks the same to the client.
func (s *service) ServeDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := s.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	token := extractTokenFromPath(r.URL.Path)

	link, err := s.Resolve(ctx, token)
	if err != nil {
		s.notFound(ctx, w, r, logger, "link not servable", err)
		return
	}
	logger = logger.With("token", token, "user_id", link.UserID, "file_id", link.FileID)

	entry, err := s.files.LoadFileEntry(ctx, link.FileID)
	if err != nil {
		s.notFound(ctx, w, r, logger, "file entry lookup failed", err)
		return
	}
	if entry.FilePath == "" {
		s.notFound(ctx, w, r, logger, "file entry has no path", nil)
		return
	}

	info, err := s.fs.Stat(entry.FilePath)
	if err != nil || info.IsDir() {
		s.forgetEntry(link.FileID)
		s.notFound(ctx, w, r, logger, "file stat failed", err)
		return
	}

	f, err := s.fs.Open(entry.FilePath)
	if err != nil {
		s.forgetEntry(link.FileID)
		s.notFound(ctx, w, r, logger, "file open failed", err)
		return
	}
	defer f.Close()

	contentType, err := detectContentType(entry.FilePath, f)
	if err != nil {
		s.notFound(ctx, w, r, logger, "content type detection failed", err)
		return
	}

	size := info.Size()
	fileName := entry.FileName
	if fileName == "" {
		fileName = path.Base(entry.FilePath)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Disposition", contentDisposition(fileName))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	n, err := io.Copy(w, f)
	downloadBytesTotal.Add(float64(n))

	if err != nil || n != size {
		downloadsTotal.WithLabelValues(outcomeIncomplete).Inc()
		attrs := []any{"sent", humanize.IBytes(uint64(n)), "size", humanize.IBytes(uint64(size))}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		logger.WarnContext(ctx, "download not completed", attrs...)
		return
	}

	downloadsTotal.WithLabelValues(outcomeComplete).Inc()
	logger.InfoContext(ctx, "download completed",
		"file_name", fileName,
		"size", humanize.IBytes(uint64(size)),
	)

	userID := link.UserID
	requestSpan := trace.LinkFromContext(ctx)
	s.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		ctx, span := tracer.Start(ctx, "links.RecordDownload",
			trace.WithLinks(requestSpan),
			trace.WithAttributes(
				attribute.Int64("filelinks.user_id", userID),
				attribute.Int64("filelinks.bytes", size),
			),
		)
		defer span.End()

		if err := s.RecordDownload(ctx, userID, size); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "record download")
			s.logger.Error("failed to record download stats",
				"user_id", userID,
				"bytes", size,
				"error", err.Error(),
				"error_kind", errx.KindOf(err),
			)
		}
	})
}

func (s *service) notFound(ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	downloadsTotal.WithLabelValues(outcomeNotFound).Inc()

	attrs := []any{}
	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs,
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
			"operation", errx.OpOf(err),
		)
		if errx.KindOf(err).ServerFault() {
			level = slog.LevelError
		}
	}
	logger.Log(ctx, level, msg, attrs...)

	s.router.FileNotFound(w, r)
}

// forgetEntry drops a cached file entry whose path did not resolve, so a file
// moved within the area is found again on the next request.
func (s *service) forgetEntry(fileID int64) {
	if inv, ok := s.files.(entryInvalidator); ok {
		inv.Invalidate(fileID)
	}
}

// detectContentType prefers the extension and falls back to sniffing the
// first bytes of f, which is rewound afterwards.
func detectContentType(name string, f afero.File) (string, error) {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct, nil
	}

	mt, err := mimetype.DetectReader(f)
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return "", seekErr
	}
	if err != nil || mt == nil {
		return fallbackContentType, nil
	}
	return mt.String(), nil
}

// contentDisposition builds an attachment header with a quoted ASCII filename.
// Characters that would break out of the quoted string are replaced. Names
// outside ASCII also get an RFC 5987 filename* parameter carrying the UTF-8 form.
func contentDisposition(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)

	ascii := true
	safe := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\':
			return '_'
		case r > 0x7f:
			ascii = false
			return '_'
		default:
			return r
		}
	}, name)
	if safe == "" {
		safe = "download"
	}

	v := `attachment; filename="` + safe + `"`
	if ascii {
		return v
	}
	// FormatMediaType switches to the extended form for non-ASCII values.
	ext := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if rest, ok := strings.CutPrefix(ext, "attachment;"); ok {
		v += ";" + rest
	}
	return v
}

// extractTokenFromPath returns the final segment of a URL path.
// For example, "/f/abc123" returns "abc123".
func extractTokenFromPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

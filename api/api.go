package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/MilekOfficial/SwapSnap/api/validator"
	"github.com/MilekOfficial/SwapSnap/gallery"
	"github.com/MilekOfficial/SwapSnap/imaging"
	"github.com/MilekOfficial/SwapSnap/ingest"
	"github.com/MilekOfficial/SwapSnap/session"
)

// A Catalog lists the registered photos, newest first.
type Catalog interface {
	ListPhotos(ctx context.Context) ([]gallery.Photo, error)
}

// A Rotation picks the next photo for a viewer.
type Rotation interface {
	Next(ctx context.Context, viewerID string) (gallery.Selection, error)
}

// Images serves stored image bytes.
type Images interface {
	Retrieve(ctx context.Context, id string) (io.ReadCloser, error)
}

// An Uploader turns an uploaded file into a registered photo.
type Uploader interface {
	Ingest(ctx context.Context, filename string, r io.Reader) (gallery.Photo, error)
}

// A Feed is told about every reaction change.
type Feed interface {
	PublishReactions(photoID string, reactions []gallery.Reaction)
}

// API provides the REST endpoints for the application.
type API struct {
	Logger   *slog.Logger
	Catalog  Catalog
	Ledger   gallery.Ledger
	Rotation Rotation
	Images   Images
	Uploader Uploader
	Sessions *session.Manager
	Val      *validator.Validator

	// Feed and Live are optional. Live serves GET /ws.
	Feed Feed
	Live http.Handler

	// MaxUploadBytes caps the request body of POST /upload.
	MaxUploadBytes int64

	once    sync.Once
	handler http.Handler
}

// multipartOverhead is the allowance for form boundaries and headers on top
// of the file itself.
const multipartOverhead = 64 << 10

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /random-photo", a.randomPhoto)
	mux.HandleFunc("GET /api/photos/random", a.randomPhoto)
	mux.HandleFunc("POST /react", a.react)
	mux.HandleFunc("GET /photos", a.listPhotos)
	mux.HandleFunc("GET /api/photos", a.listPhotos)
	mux.HandleFunc("GET /photos/{photoID}/reactions", a.photoReactions)
	mux.HandleFunc("POST /upload", a.upload)
	mux.HandleFunc("GET /uploads/{photoID}", a.serveImage)
	mux.HandleFunc("GET /reactions", a.allowedReactions)
	mux.HandleFunc("GET /health", a.health)
	if a.Live != nil {
		mux.Handle("GET /ws", a.Live)
	}

	a.handler = mux
	if a.Sessions != nil {
		a.handler = a.Sessions.Middleware(mux)
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.handler.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// respondDomainError maps the gallery error taxonomy to a status and a
// fixed message. Unknown errors are a 500 with fallback as the message.
func (a *API) respondDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, gallery.ErrNoPhotosAvailable):
		a.respondError(w, http.StatusNotFound, err, "No photos available, upload something first")
	case errors.Is(err, gallery.ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, "Photo not found")
	case errors.Is(err, gallery.ErrInvalidReaction):
		a.respondError(w, http.StatusBadRequest, err, "Invalid reaction")
	case errors.Is(err, gallery.ErrInvalidRequest):
		a.respondError(w, http.StatusBadRequest, err, "Invalid request")
	case errors.Is(err, gallery.ErrStorage):
		a.respondError(w, http.StatusServiceUnavailable, err, "Storage unavailable, try again later")
	default:
		a.respondError(w, http.StatusInternalServerError, err, fallback)
	}
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Error  string                      `json:"error"`
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Error:  "Invalid request",
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) randomPhoto(w http.ResponseWriter, r *http.Request) {
	viewerID := session.ViewerID(r.Context())

	sel, err := a.Rotation.Next(r.Context(), viewerID)
	if err != nil {
		a.respondDomainError(w, err, "Could not select a photo")
		return
	}

	a.respond(w, http.StatusOK, selectionResponse{
		Photo:     sel.Photo,
		Reactions: nonNil(sel.Reactions),
		Summary:   gallery.Summarize(sel.Reactions),
	})
}

func (a *API) react(w http.ResponseWriter, r *http.Request) {
	type request struct {
		PhotoID string `json:"photo_id" validate:"max=255"`
		Emoji   string `json:"emoji"`
	}

	var body request
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	err = r.Body.Close()
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return
	}

	viewerID := session.ViewerID(r.Context())
	if err := gallery.ValidateReaction(body.PhotoID, viewerID, body.Emoji); err != nil {
		a.respondDomainError(w, err, "Could not save reaction")
		return
	}

	reactions, err := a.Ledger.UpsertReaction(r.Context(), body.PhotoID, viewerID, body.Emoji)
	if err != nil {
		a.respondDomainError(w, err, "Could not save reaction")
		return
	}

	if a.Feed != nil {
		a.Feed.PublishReactions(body.PhotoID, reactions)
	}

	a.respond(w, http.StatusOK, reactionsResponse{
		PhotoID:   body.PhotoID,
		Reactions: nonNil(reactions),
		Summary:   gallery.Summarize(reactions),
	})
}

func (a *API) listPhotos(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Photos []gallery.Photo `json:"photos"`
	}

	photos, err := a.Catalog.ListPhotos(r.Context())
	if err != nil {
		a.respondDomainError(w, err, "Could not list photos")
		return
	}
	if photos == nil {
		photos = []gallery.Photo{}
	}
	a.Logger.Debug("Listed photos", "count", len(photos))

	a.respond(w, http.StatusOK, response{Photos: photos})
}

func (a *API) photoReactions(w http.ResponseWriter, r *http.Request) {
	photoID := r.PathValue("photoID")

	reactions, err := a.Ledger.GetReactions(r.Context(), photoID)
	if err != nil {
		a.respondDomainError(w, err, "Could not get reactions")
		return
	}

	a.respond(w, http.StatusOK, reactionsResponse{
		PhotoID:   photoID,
		Reactions: nonNil(reactions),
		Summary:   gallery.Summarize(reactions),
	})
}

func (a *API) upload(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Photo gallery.Photo `json:"photo"`
	}

	maxBytes := a.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = ingest.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.respondError(w, http.StatusRequestEntityTooLarge, err, "File too large")
		case errors.Is(err, http.ErrMissingFile):
			a.respondError(w, http.StatusBadRequest, err, "No file provided")
		default:
			a.respondError(w, http.StatusBadRequest, err, "Could not read upload")
		}
		return
	}
	defer file.Close()

	if header.Filename == "" {
		a.respondError(w, http.StatusBadRequest, errors.New("empty file name"), "No file selected")
		return
	}

	photo, err := a.Uploader.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrFileType):
			a.respondError(w, http.StatusBadRequest, err, "File type not allowed")
		case errors.Is(err, ingest.ErrTooLarge):
			a.respondError(w, http.StatusRequestEntityTooLarge, err, "File too large")
		case errors.Is(err, imaging.ErrUnsupported):
			a.respondError(w, http.StatusBadRequest, err, "File is not a valid image")
		default:
			a.respondDomainError(w, err, "Could not upload photo")
		}
		return
	}

	a.respond(w, http.StatusCreated, response{Photo: photo})
}

func (a *API) serveImage(w http.ResponseWriter, r *http.Request) {
	photoID := r.PathValue("photoID")

	rc, err := a.Images.Retrieve(r.Context(), photoID)
	if err != nil {
		a.respondDomainError(w, err, "Could not read photo")
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(photoID)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// Stored ids are never reused.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		a.Logger.Warn("Could not stream photo", "id", photoID, "error", err.Error())
	}
}

func (a *API) allowedReactions(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Reactions []string `json:"reactions"`
	}
	a.respond(w, http.StatusOK, response{Reactions: gallery.AllowedReactions()})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	a.respond(w, http.StatusOK, response{Status: "healthy"})
}

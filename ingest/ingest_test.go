package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"

	"github.com/MilekOfficial/SwapSnap/blobstore"
	"github.com/MilekOfficial/SwapSnap/gallery"
	"github.com/MilekOfficial/SwapSnap/imaging"
	"github.com/MilekOfficial/SwapSnap/memory"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newPipeline(t *testing.T, reg Registrar) (*Pipeline, *blobstore.Local) {
	t.Helper()
	blobs, err := blobstore.NewLocal(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = blobs.Close() })
	return &Pipeline{
		Processor: &imaging.Processor{},
		Storage:   blobs,
		Catalog:   reg,
		Logger:    slogt.New(t),
		Now:       func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}, blobs
}

func TestPipeline_Ingest(t *testing.T) {
	catalog := &gallery.Catalog{Store: memory.NewStore(), Logger: slogt.New(t)}
	p, blobs := newPipeline(t, catalog)
	ctx := context.Background()

	photo, err := p.Ingest(ctx, "holiday.PNG", bytes.NewReader(pngBytes(t, 8, 8)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(photo.ID, "20240102030405_") || !strings.HasSuffix(photo.ID, ".png") {
		t.Errorf("Got id %q, want timestamp prefix and .png suffix", photo.ID)
	}
	if photo.Locator != "/uploads/"+photo.ID {
		t.Errorf("Got locator %q", photo.Locator)
	}
	if photo.Metadata == nil || photo.Metadata.OriginalFilename != "holiday.PNG" {
		t.Errorf("Got metadata %+v, want original filename kept", photo.Metadata)
	}
	if ok, _ := blobs.Exists(ctx, photo.ID); !ok {
		t.Error("Stored bytes are missing")
	}

	listed, err := catalog.ListPhotos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != photo.ID {
		t.Errorf("Got catalog %v, want the ingested photo", listed)
	}
}

func TestPipeline_IngestErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		maxBytes int64
		wantErr  error
	}{
		{name: "Extension", filename: "notes.txt", data: []byte("hello"), wantErr: ErrFileType},
		{name: "NoExtension", filename: "photo", data: []byte("hello"), wantErr: ErrFileType},
		{name: "TooLarge", filename: "big.png", data: make([]byte, 64), maxBytes: 32, wantErr: ErrTooLarge},
		{name: "NotAnImage", filename: "fake.jpg", data: []byte("my file contents"), wantErr: imaging.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, blobs := newPipeline(t, &gallery.Catalog{Store: memory.NewStore()})
			p.MaxBytes = tt.maxBytes

			_, err := p.Ingest(context.Background(), tt.filename, bytes.NewReader(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Got error %v, want %v", err, tt.wantErr)
			}
			ids, _ := blobs.List(context.Background())
			if len(ids) != 0 {
				t.Errorf("Got %d stored blobs after a rejected upload, want 0", len(ids))
			}
		})
	}
}

func TestPipeline_RegisterFailureRemovesBytes(t *testing.T) {
	p, blobs := newPipeline(t, failingRegistrar{})

	_, err := p.Ingest(context.Background(), "a.png", bytes.NewReader(pngBytes(t, 2, 2)))
	if !errors.Is(err, gallery.ErrStorage) {
		t.Fatalf("Got error %v, want ErrStorage", err)
	}
	ids, _ := blobs.List(context.Background())
	if len(ids) != 0 {
		t.Errorf("Got %d stored blobs after failed registration, want 0", len(ids))
	}
}

type failingRegistrar struct{}

func (failingRegistrar) RegisterPhoto(context.Context, gallery.Photo) (gallery.Photo, error) {
	return gallery.Photo{}, gallery.StorageError("insert photo", errors.New("disk full"))
}

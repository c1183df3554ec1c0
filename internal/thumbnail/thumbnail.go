// Package thumbnail derives preview images from stored objects. The pipeline
// sniffs the real content type from the object's bytes and dispatches to a
// per-type handler: raster images are resized in place, videos contribute a
// single extracted frame, PDFs a render of page one, and everything else a
// solid-color placeholder so every upload ends up with some preview.
//
// Failure here is always soft: a missing source or an unsupported format
// yields no thumbnail, never an error that blocks upload completion.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/ktg/storage-service/internal/objectstore"
)

const (
	// thumbnailPrefix namespaces derived artifacts inside the bucket.
	thumbnailPrefix = "thumbnails"

	// defaultBox bounds image, video, and placeholder thumbnails.
	defaultBox = 128

	// pdfBox bounds rendered PDF pages, which stay larger for legibility.
	pdfBox = 300

	jpegQuality = 85
)

// Generator runs the thumbnail pipeline against an object store.
type Generator struct {
	objects objectstore.Client
	acl     string
	log     zerolog.Logger

	// FFmpegPath and FFprobePath locate the binaries used for video frame
	// extraction. They default to lookup on PATH.
	FFmpegPath  string
	FFprobePath string
}

// NewGenerator creates a Generator uploading derived artifacts with the
// given ACL.
func NewGenerator(objects objectstore.Client, acl string, log zerolog.Logger) *Generator {
	return &Generator{
		objects:     objects,
		acl:         acl,
		log:         log,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Generate derives a thumbnail for the object at sourcePath and uploads it
// under the thumbnails prefix. It returns the thumbnail's store key, or ""
// with a nil error when no thumbnail could be produced — the pipeline
// contract is that callers continue without one.
func (g *Generator) Generate(ctx context.Context, sourcePath string) (string, error) {
	key, err := g.generate(ctx, sourcePath)
	if err != nil {
		g.log.Error().Err(err).Str("source", sourcePath).Msg("thumbnail pipeline failed")
		return "", nil
	}
	return key, nil
}

func (g *Generator) generate(ctx context.Context, sourcePath string) (string, error) {
	exists, err := g.objects.Exists(ctx, sourcePath)
	if err != nil {
		return "", fmt.Errorf("check source: %w", err)
	}
	if !exists {
		g.log.Debug().Str("source", sourcePath).Msg("thumbnail source does not exist")
		return "", nil
	}

	// Whole-object read. Objects here are document/media scale, not
	// arbitrarily large.
	data, err := g.objects.GetBytes(ctx, sourcePath)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}

	// Never trust the caller-declared content type; sniff the magic bytes.
	mtype := mimetype.Detect(data)

	var encoded []byte
	var ext, contentType string

	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		encoded, ext, contentType, err = g.fromImage(data)
	case strings.HasPrefix(mtype.String(), "video/"):
		encoded, ext, contentType, err = g.fromVideo(ctx, data, mtype.Extension())
	case mtype.Is("application/pdf"):
		encoded, ext, contentType, err = g.fromPDF(data)
	default:
		encoded, ext, contentType, err = g.placeholder()
	}
	if err != nil {
		return "", err
	}
	if encoded == nil {
		return "", nil
	}

	thumbKey := deriveKey(sourcePath, ext)
	if err := g.objects.Upload(ctx, thumbKey, bytes.NewReader(encoded), int64(len(encoded)), contentType, g.acl); err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}

	return thumbKey, nil
}

// fromImage resizes a raster image to fit the default bounding box,
// preserving aspect ratio, and re-encodes it in its original format family.
// An undecodable subtype yields no thumbnail.
func (g *Generator) fromImage(data []byte) ([]byte, string, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		g.log.Debug().Err(err).Msg("unsupported image subtype")
		return nil, "", "", nil
	}

	thumb := imaging.Fit(src, defaultBox, defaultBox, imaging.Lanczos)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = imaging.Encode(&buf, thumb, imaging.PNG)
		return buf.Bytes(), ".png", "image/png", err
	case "gif":
		err = imaging.Encode(&buf, thumb, imaging.GIF)
		return buf.Bytes(), ".gif", "image/gif", err
	default:
		// JPEG and everything else without an alpha-safe encoder. Fit
		// composites onto an opaque RGB canvas so alpha modes encode
		// cleanly.
		err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
		return buf.Bytes(), ".jpg", "image/jpeg", err
	}
}

// placeholder produces a solid-color image of a random RGB color, so that
// uploads of unsupported types still get a distinct preview.
func (g *Generator) placeholder() ([]byte, string, string, error) {
	c := color.NRGBA{
		R: uint8(rand.Intn(256)),
		G: uint8(rand.Intn(256)),
		B: uint8(rand.Intn(256)),
		A: 255,
	}
	img := imaging.New(defaultBox, defaultBox, c)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", "", fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), ".jpg", "image/jpeg", nil
}

// deriveKey maps a source store path onto its thumbnail key: base filename,
// extension stripped, under the thumbnails prefix.
func deriveKey(sourcePath, ext string) string {
	base := path.Base(sourcePath)
	base = strings.TrimSuffix(base, path.Ext(base))
	return thumbnailPrefix + "/" + base + ext
}

package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/pallet-engine/pallet/pkg/assetid"
)

// PayloadKind is the closed set of typed payloads the asset manager can
// decode.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadConfig
	PayloadScript
	PayloadBlob
	PayloadRawArchive
	PayloadTexture
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadConfig:
		return "config"
	case PayloadScript:
		return "script"
	case PayloadBlob:
		return "blob"
	case PayloadRawArchive:
		return "raw_archive"
	case PayloadTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// Payload is any decoded asset body. DecodedSize is reported per slot by
// Manager.ListAssets.
type Payload interface {
	Kind() PayloadKind
	DecodedSize() int
}

// TextPayload holds UTF-8 free text (engine:text assets).
type TextPayload struct{ Text string }

func (p *TextPayload) Kind() PayloadKind { return PayloadText }
func (p *TextPayload) DecodedSize() int  { return len(p.Text) }

// ConfigPayload holds UTF-8 key/value configuration bodies.
type ConfigPayload struct{ Text string }

func (p *ConfigPayload) Kind() PayloadKind { return PayloadConfig }
func (p *ConfigPayload) DecodedSize() int  { return len(p.Text) }

// ScriptPayload holds UTF-8 control-plane exec scripts.
type ScriptPayload struct{ Text string }

func (p *ScriptPayload) Kind() PayloadKind { return PayloadScript }
func (p *ScriptPayload) DecodedSize() int  { return len(p.Text) }

// BlobPayload holds opaque decoded bytes.
type BlobPayload struct{ Bytes []byte }

func (p *BlobPayload) Kind() PayloadKind { return PayloadBlob }
func (p *BlobPayload) DecodedSize() int  { return len(p.Bytes) }

// RawArchivePayload holds bytes passed through undecoded (e.g. a .bsp or
// .pak entry headed for a downstream parser).
type RawArchivePayload struct{ Bytes []byte }

func (p *RawArchivePayload) Kind() PayloadKind { return PayloadRawArchive }
func (p *RawArchivePayload) DecodedSize() int  { return len(p.Bytes) }

// TexturePayload holds a PNG decoded to RGBA8.
type TexturePayload struct {
	Width, Height int
	Pix           []byte // RGBA8, row-major, Width*Height*4 bytes
}

func (p *TexturePayload) Kind() PayloadKind { return PayloadTexture }
func (p *TexturePayload) DecodedSize() int  { return len(p.Pix) }

// Decoder declares which identifiers it accepts and how to turn raw bytes
// into a Payload.
type Decoder interface {
	Accepts(id assetid.ID) bool
	Decode(id assetid.ID, data []byte) (Payload, error)
	Kind() PayloadKind
}

type textDecoder struct{}

func (textDecoder) Kind() PayloadKind { return PayloadText }
func (textDecoder) Accepts(id assetid.ID) bool {
	// Test maps are human-readable key/value documents; their structured
	// loader sits above the payload cache.
	return id.Namespace == assetid.Engine &&
		(id.Kind == assetid.KindText || id.Kind == assetid.KindTestMap)
}
func (textDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	return &TextPayload{Text: string(data)}, nil
}

type configDecoder struct{}

func (configDecoder) Kind() PayloadKind { return PayloadConfig }
func (configDecoder) Accepts(id assetid.ID) bool {
	return id.Namespace == assetid.Engine && id.Kind == assetid.KindConfig
}
func (configDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	return &ConfigPayload{Text: string(data)}, nil
}

type scriptDecoder struct{}

func (scriptDecoder) Kind() PayloadKind { return PayloadScript }
func (scriptDecoder) Accepts(id assetid.ID) bool {
	return id.Namespace == assetid.Engine && id.Kind == assetid.KindScript
}
func (scriptDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	return &ScriptPayload{Text: string(data)}, nil
}

type blobDecoder struct{}

func (blobDecoder) Kind() PayloadKind { return PayloadBlob }
func (blobDecoder) Accepts(id assetid.ID) bool {
	return id.Namespace == assetid.Engine && id.Kind == assetid.KindBlob
}
func (blobDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	return &BlobPayload{Bytes: data}, nil
}

type rawArchiveDecoder struct{}

func (rawArchiveDecoder) Kind() PayloadKind { return PayloadRawArchive }
func (rawArchiveDecoder) Accepts(id assetid.ID) bool {
	// Map geometry is also carried raw: the BSP parser downstream consumes
	// the undecoded bytes.
	return id.Kind == assetid.KindRaw || id.Kind == assetid.KindRawOther || id.Kind == assetid.KindMap
}
func (rawArchiveDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	return &RawArchivePayload{Bytes: data}, nil
}

type textureDecoder struct{}

func (textureDecoder) Kind() PayloadKind { return PayloadTexture }
func (textureDecoder) Accepts(id assetid.ID) bool {
	return id.Kind == assetid.KindTexture
}
func (textureDecoder) Decode(id assetid.ID, data []byte) (Payload, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("assets: decoding PNG texture %s: %w", id.String(), err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		conv := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				conv.Set(x, y, img.At(x, y))
			}
		}
		rgba = conv
	}
	b := rgba.Bounds()
	return &TexturePayload{Width: b.Dx(), Height: b.Dy(), Pix: rgba.Pix}, nil
}

// defaultDecoders returns the closed set of built-in decoders, checked in
// order; the first whose Accepts matches wins.
func defaultDecoders() []Decoder {
	return []Decoder{
		textureDecoder{},
		rawArchiveDecoder{},
		textDecoder{},
		configDecoder{},
		scriptDecoder{},
		blobDecoder{},
	}
}

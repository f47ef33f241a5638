package escpos

import (
	"bytes"
	"image"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Alignment selects horizontal justification
type Alignment byte

const (
	AlignLeft   Alignment = 0
	AlignCenter Alignment = 1
	AlignRight  Alignment = 2
)

// FontSize is a combination of the double-height and double-width flags
type FontSize byte

const (
	SizeNormal       FontSize = 0x00
	SizeDoubleHeight FontSize = 0x01
	SizeDoubleWidth  FontSize = 0x10
	SizeDouble       FontSize = SizeDoubleHeight | SizeDoubleWidth
)

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// CodeTablePC850 is the character table selected by Init
const CodeTablePC850 = 0x02

var typographic = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"™", "(TM)",
	"®", "(R)",
	"©", "(C)",
	"•", "*",
	"…", "...",
)

// Encoder accumulates ESC/POS commands for a single job.
// Create one per job; Encoders are not safe for concurrent use.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) write(b ...byte) *Encoder {
	e.buf.Write(b)
	return e
}

// Init resets the printer and selects the PC850 code table
func (e *Encoder) Init() *Encoder {
	return e.write(esc, '@', esc, 't', CodeTablePC850)
}

// Text appends s as single-byte Latin-1. Typographic characters are replaced
// with ASCII equivalents first; any remaining rune outside Latin-1, and any
// invalid UTF-8, becomes '?'.
func (e *Encoder) Text(s string) *Encoder {
	normalized := typographic.Replace(s)
	for len(normalized) > 0 {
		r, size := utf8.DecodeRuneInString(normalized)
		normalized = normalized[size:]
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok || (r == utf8.RuneError && size == 1) {
			b = '?'
		}
		e.buf.WriteByte(b)
	}
	return e
}

// LineBreak appends a line feed
func (e *Encoder) LineBreak() *Encoder {
	return e.write(lf)
}

// Feed prints the buffer and feeds n lines
func (e *Encoder) Feed(n byte) *Encoder {
	return e.write(esc, 'd', n)
}

// Align sets justification
func (e *Encoder) Align(a Alignment) *Encoder {
	return e.write(esc, 'a', byte(a))
}

// Bold turns emphasized mode on or off
func (e *Encoder) Bold(on bool) *Encoder {
	return e.write(esc, 'E', boolByte(on))
}

// Underline turns single underline on or off
func (e *Encoder) Underline(on bool) *Encoder {
	return e.write(esc, '-', boolByte(on))
}

// FontSize selects the character size
func (e *Encoder) FontSize(s FontSize) *Encoder {
	return e.write(gs, '!', byte(s))
}

// Cut performs a full cut
func (e *Encoder) Cut() *Encoder {
	return e.write(gs, 'V', 0x00)
}

// OpenCashDrawer pulses drawer pin 2 for 100ms on, 100ms off
func (e *Encoder) OpenCashDrawer() *Encoder {
	return e.write(esc, 'p', 0x00, 0x32, 0x32)
}

// Barcode prints content as CODE128 using code set B. The content is not
// validated and the length byte wraps for content longer than 253 bytes.
func (e *Encoder) Barcode(content string) *Encoder {
	data := []byte(content)
	e.write(gs, 'k', 73, byte(len(data)+2), '{', 'B')
	e.buf.Write(data)
	return e
}

// QRCode prints content as a model 2 QR code. Content longer than
// 65532 bytes cannot be expressed in the store command.
func (e *Encoder) QRCode(content string) *Encoder {
	data := []byte(content)
	pL, pH := qrStoreLength(len(data))

	e.write(gs, '(', 'k', 0x04, 0x00, 0x31, 0x41, 0x32, 0x00) // model 2
	e.write(gs, '(', 'k', 0x03, 0x00, 0x31, 0x43, 0x06)       // module size
	e.write(gs, '(', 'k', 0x03, 0x00, 0x31, 0x45, 0x30)       // error correction L
	e.write(gs, '(', 'k', pL, pH, 0x31, 0x50, 0x30)           // store
	e.buf.Write(data)
	return e.write(gs, '(', 'k', 0x03, 0x00, 0x31, 0x51, 0x30) // print
}

func qrStoreLength(n int) (byte, byte) {
	l := n + 3
	return byte(l % 256), byte(l / 256)
}

// Image appends img as a raster bit image
func (e *Encoder) Image(img image.Image) *Encoder {
	e.buf.Write(Raster(img))
	return e
}

// Table prints each row with every cell padded on the right to its column
// width. Wider cells overflow; cells without a width are written as is.
func (e *Encoder) Table(rows [][]string, widths []int) *Encoder {
	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			line.WriteString(cell)
			if i < len(widths) {
				if pad := widths[i] - utf8.RuneCountInString(cell); pad > 0 {
					line.WriteString(strings.Repeat(" ", pad))
				}
			}
		}
		e.Text(line.String()).LineBreak()
	}
	return e
}

// Len returns the number of bytes accumulated so far
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Build returns a copy of the accumulated bytes
func (e *Encoder) Build() []byte {
	return bytes.Clone(e.buf.Bytes())
}

func boolByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

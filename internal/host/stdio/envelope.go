// Package stdio drives the switch from the lab harness: every event and
// every transmitted frame travels as a size/type envelope over a byte
// stream.
package stdio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderLen is the envelope header: size then type, both big endian. Size
// counts the header itself.
const HeaderLen = 4

// TypeControl marks operator text. Types 1..n name interfaces.
const TypeControl = 0

var (
	ErrShortMessage    = errors.New("envelope size smaller than its header")
	ErrMessageTooLarge = errors.New("envelope body too large")
)

type Message struct {
	Type uint16
	Body []byte
}

type Reader struct {
	r   *bufio.Reader
	hdr [HeaderLen]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage returns io.EOF when the stream ends between messages and
// io.ErrUnexpectedEOF when it ends inside one. Body is freshly allocated.
func (r *Reader) ReadMessage() (Message, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		return Message{}, err
	}
	size := binary.BigEndian.Uint16(r.hdr[0:2])
	typ := binary.BigEndian.Uint16(r.hdr[2:4])
	if size < HeaderLen {
		return Message{}, fmt.Errorf("%w: size %d", ErrShortMessage, size)
	}
	body := make([]byte, int(size)-HeaderLen)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}
	return Message{Type: typ, Body: body}, nil
}

// Writer emits envelopes. Every message is flushed so the harness sees it
// immediately.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) WriteMessage(typ uint16, body []byte) error {
	if len(body) > math.MaxUint16-HeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(HeaderLen+len(body)))
	binary.BigEndian.PutUint16(hdr[2:4], typ)
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(body); err != nil {
		return err
	}
	return w.w.Flush()
}

// Transmit sends raw as a frame for interface ifc.
func (w *Writer) Transmit(ifc int, raw []byte) error {
	if ifc < 1 || ifc > math.MaxUint16 {
		return fmt.Errorf("interface %d does not fit an envelope type", ifc)
	}
	return w.WriteMessage(uint16(ifc), raw)
}

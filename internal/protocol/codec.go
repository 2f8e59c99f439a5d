package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize caps a single encoded message, delimiter included. Frames
// above the cap are rejected as malformed rather than buffered without bound.
const MaxMessageSize = 1 << 20

// DecodeError marks a frame that was received intact but could not be decoded
// into a message. It is recoverable: the connection stays usable and the
// reader is already positioned at the next frame.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteMessage encodes v as one newline-terminated JSON document.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(data)+1 > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit", len(data))
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// readFrame reads one newline-delimited frame. The scan is bounded: once the
// accumulated bytes pass MaxMessageSize the rest of the frame is discarded up
// to its delimiter, never buffered, and the frame is reported as a
// *DecodeError so the stream stays in sync.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadSlice('\n')
		frame = append(frame, chunk...)
		switch err {
		case nil:
			if len(frame) > MaxMessageSize {
				return nil, &DecodeError{Err: fmt.Errorf("frame of %d bytes exceeds limit", len(frame))}
			}
			return frame, nil
		case bufio.ErrBufferFull:
			if len(frame) > MaxMessageSize {
				return nil, discardFrame(r, len(frame))
			}
		case io.EOF:
			if len(frame) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}

// discardFrame drains an already-over-limit frame to its delimiter without
// retaining the bytes, counting them so the error names the full frame size.
func discardFrame(r *bufio.Reader, n int) error {
	for {
		chunk, err := r.ReadSlice('\n')
		n += len(chunk)
		switch err {
		case nil:
			return &DecodeError{Err: fmt.Errorf("frame of %d bytes exceeds limit", n)}
		case bufio.ErrBufferFull:
		case io.EOF:
			return io.ErrUnexpectedEOF
		default:
			return err
		}
	}
}

// ReadRequest reads and decodes the next request frame.
func ReadRequest(r *bufio.Reader) (Request, error) {
	var req Request
	frame, err := readFrame(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(frame, &req); err != nil {
		return req, &DecodeError{Err: err}
	}
	if req.Type == "" {
		return req, &DecodeError{Err: fmt.Errorf("request without type")}
	}
	return req, nil
}

// ReadResponse reads and decodes the next response frame.
func ReadResponse(r *bufio.Reader) (Response, error) {
	var resp Response
	frame, err := readFrame(r)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(frame, &resp); err != nil {
		return resp, &DecodeError{Err: err}
	}
	if resp.Type == "" {
		return resp, &DecodeError{Err: fmt.Errorf("response without type")}
	}
	return resp, nil
}

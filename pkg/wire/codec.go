package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sidkik/syncbox/pkg/errors"
)

// bufferSize is the block size used when streaming file content.
const bufferSize = 32 * 1024

// Write encodes `cmd` onto `w`. File content is copied in blocks; exactly
// cmd.Size bytes are written or an error is returned.
func Write(w io.Writer, cmd Command) error {
	if !cmd.Code.Valid() {
		return errors.UnknownCommand{Code: int32(cmd.Code)}
	}

	bw := bufio.NewWriterSize(w, bufferSize)
	enc := encoder{w: bw}
	enc.int32(int32(cmd.Code))

	switch cmd.Code {
	case CodeLogin, CodeLogout, CodeUserActive, CodeUserInactive:
		enc.string(cmd.Login)
	case CodeSendToUser:
		enc.string(cmd.Login)
		enc.fileHeader(cmd)
	case CodeSendFile:
		enc.fileHeader(cmd)
	case CodeCheckFile:
		enc.string(cmd.Path)
		enc.int64(cmd.ModTime)
	case CodeDeleteFile, CodeNeedFile:
		enc.string(cmd.Path)
	}
	if enc.err != nil {
		return errors.WithContext(enc.err, fmt.Sprintf("encode %s", cmd.Code))
	}

	if hasContent(cmd.Code) && cmd.Size > 0 {
		if cmd.Content == nil {
			return errors.New("missing file content")
		}
		n, err := io.CopyN(bw, cmd.Content, cmd.Size)
		if err != nil {
			if err == io.EOF {
				return errors.WithContext(errors.ErrShortContent,
					fmt.Sprintf("copied %d of %d bytes", n, cmd.Size))
			}
			return errors.WithContext(err, "copy content")
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.WithContext(err, "flush")
	}
	return nil
}

// Read decodes a single command from `r`. For SEND_FILE and SEND_TO_USER,
// the returned command's Content reads the file bytes straight from `r` and
// yields io.ErrUnexpectedEOF if the peer sends fewer than Size bytes.
func Read(r io.Reader) (Command, error) {
	br := bufio.NewReaderSize(r, bufferSize)
	dec := decoder{r: br}

	code := Code(dec.int32())
	if dec.err != nil {
		return Command{}, errors.WithContext(dec.err, "read command code")
	}
	if !code.Valid() {
		return Command{}, errors.UnknownCommand{Code: int32(code)}
	}

	cmd := Command{Code: code}
	switch code {
	case CodeLogin, CodeLogout, CodeUserActive, CodeUserInactive:
		cmd.Login = dec.string()
	case CodeSendToUser:
		cmd.Login = dec.string()
		dec.fileHeader(&cmd)
	case CodeSendFile:
		dec.fileHeader(&cmd)
	case CodeCheckFile:
		cmd.Path = dec.string()
		cmd.ModTime = dec.int64()
	case CodeDeleteFile, CodeNeedFile:
		cmd.Path = dec.string()
	}
	if dec.err != nil {
		return Command{}, errors.WithContext(dec.err, fmt.Sprintf("decode %s", code))
	}

	if hasContent(code) {
		if cmd.Size < 0 {
			return Command{}, errors.Errorf("negative content size %d", cmd.Size)
		}
		cmd.Content = &exactReader{r: br, remaining: cmd.Size}
	}
	return cmd, nil
}

func hasContent(code Code) bool {
	return code == CodeSendFile || code == CodeSendToUser
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v interface{}) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.BigEndian, v)
}

func (e *encoder) int32(v int32) { e.write(v) }
func (e *encoder) int64(v int64) { e.write(v) }

func (e *encoder) string(s string) {
	if e.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		e.err = errors.Errorf("string of %d bytes is too long", len(s))
		return
	}
	e.write(uint16(len(s)))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *encoder) fileHeader(cmd Command) {
	if cmd.Size < 0 {
		e.err = errors.Errorf("negative content size %d", cmd.Size)
		return
	}
	e.string(cmd.Path)
	e.int64(cmd.ModTime)
	e.int64(cmd.Size)
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) read(v interface{}) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.BigEndian, v)
}

func (d *decoder) int32() (v int32) {
	d.read(&v)
	return v
}

func (d *decoder) int64() (v int64) {
	d.read(&v)
	return v
}

func (d *decoder) string() string {
	var n uint16
	d.read(&n)
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	_, d.err = io.ReadFull(d.r, buf)
	return string(buf)
}

func (d *decoder) fileHeader(cmd *Command) {
	cmd.Path = d.string()
	cmd.ModTime = d.int64()
	cmd.Size = d.int64()
}

// exactReader reads `remaining` bytes from r and treats an early EOF as an
// error rather than a clean end of stream.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (er *exactReader) Read(p []byte) (int, error) {
	if er.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > er.remaining {
		p = p[:er.remaining]
	}
	n, err := er.r.Read(p)
	er.remaining -= int64(n)
	if err == io.EOF && er.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

/* Copyright 2026 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Comcast/fixsession/reject"
)

// DefaultMaxSize is the default limit on a framed message's body.
const DefaultMaxSize = 1 << 20

// ErrTooBig occurs when a message's BodyLength exceeds the Framer's
// MaxSize.
var ErrTooBig = errors.New("fix: message too big")

// Framer reads complete messages from a stream.
//
// A message is "8=...<sep>9=N<sep>", N bytes of body, and
// "10=nnn<sep>".  Bytes before a "8=" are skipped.  Reads can return
// partial messages.  The Framer waits for the rest.
type Framer struct {
	MaxSize int

	// Skipped counts bytes discarded while looking for the start
	// of a message.
	Skipped int

	r   *bufio.Reader
	sep byte
}

// NewFramer makes a Framer reading from r.
func NewFramer(r io.Reader, sep byte) *Framer {
	return &Framer{
		MaxSize: DefaultMaxSize,
		r:       bufio.NewReader(r),
		sep:     sep,
	}
}

// Next returns the next complete message.  The returned slice is the
// caller's.
//
// At a clean end of stream, Next returns io.EOF.  If the stream ends
// mid-message, it returns io.ErrUnexpectedEOF.
func (f *Framer) Next() ([]byte, error) {
	var begin []byte
	for {
		line, err := f.r.ReadBytes(f.sep)
		if err != nil {
			if err == io.EOF && 0 < len(line) {
				f.Skipped += len(line)
			}
			return nil, err
		}
		// A digit before "8=" means some other tag, like 58=.
		if i := bytes.Index(line, []byte("8=")); 0 <= i && (i == 0 || !isDigit(line[i-1])) {
			f.Skipped += i
			begin = line[i:]
			break
		}
		f.Skipped += len(line)
	}

	lengthField, err := f.r.ReadBytes(f.sep)
	if err != nil {
		return nil, unexpected(err)
	}
	if !bytes.HasPrefix(lengthField, []byte("9=")) {
		return nil, &ParseError{Tag: 9, Reason: reject.RequiredTagMissing, Msg: "BodyLength must follow BeginString"}
	}
	n, err := parseLength(lengthField[2 : len(lengthField)-1])
	if err != nil {
		return nil, &ParseError{Tag: 9, Reason: reject.IncorrectDataFormat, Msg: err.Error()}
	}
	if 0 < f.MaxSize && f.MaxSize < n || maxInt-len(begin)-len(lengthField)-8 < n {
		return nil, fmt.Errorf("%w: BodyLength %d", ErrTooBig, n)
	}

	msg := make([]byte, 0, len(begin)+len(lengthField)+n+7)
	msg = append(msg, begin...)
	msg = append(msg, lengthField...)
	body := make([]byte, n)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, unexpected(err)
	}
	msg = append(msg, body...)

	trailer, err := f.r.ReadBytes(f.sep)
	if err != nil {
		return nil, unexpected(err)
	}
	// A wrong BodyLength shows up here as a trailer that isn't
	// "10=".  The message goes back anyway and the parser reports
	// the problem.
	return append(msg, trailer...), nil
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

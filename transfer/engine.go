// lwdrone - control and stream video from lewei WiFi camera modules
//  Copyright (C) 2020, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package transfer drives the multi round trip exchanges with the camera:
// listing its recordings and pictures, and downloading stored files a
// chunk at a time.
package transfer

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TheCacophonyProject/lwdrone/demux"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// ErrNotFound is wrapped by the TransferError for a file the camera
// doesn't have.
var ErrNotFound = errors.New("file not found on camera")

// MaxPictures is the most pictures the camera will list in one call.
const MaxPictures = 512

// Caller makes correlated calls on one connection. *correlator.Correlator
// satisfies it.
type Caller interface {
	Call(req *protocol.Frame, want protocol.Opcode, timeout time.Duration) (*protocol.Frame, error)
	Await(want protocol.Opcode, timeout time.Duration) (*protocol.Frame, error)
}

// New returns an Engine making calls through c. Each call waits up to
// timeout; a chunk request that times out is tried again up to retries
// more times.
func New(c Caller, timeout time.Duration, retries int) *Engine {
	if retries < 0 {
		retries = 0
	}
	return &Engine{
		c:       c,
		timeout: timeout,
		retries: retries,
		now:     time.Now,
	}
}

type Engine struct {
	c       Caller
	timeout time.Duration
	retries int
	now     func() time.Time
}

// ListRecordings returns the recordings the camera is tracking, in the
// order it reports them. A listing the camera splits over several frames
// flags every frame but the last with a non-zero aux word.
func (e *Engine) ListRecordings() ([]protocol.RecordingEntry, error) {
	req := protocol.NewFrame(protocol.GetRecList, protocol.RecordListRequest(e.now()))
	resp, err := e.c.Call(req, protocol.GetRecList, e.timeout)
	var entries []protocol.RecordingEntry
	for {
		if err != nil {
			return nil, err
		}
		batch, perr := protocol.ParseRecordings(resp.Payload, len(entries))
		if perr != nil {
			return nil, perr
		}
		entries = append(entries, batch...)
		if resp.Aux == 0 {
			return entries, nil
		}
		resp, err = e.c.Await(protocol.GetRecList, e.timeout)
	}
}

// ListPictures returns up to n pictures stored on the camera. Zero asks for
// the camera's default listing of 256.
func (e *Engine) ListPictures(n int) ([]protocol.PictureEntry, error) {
	if n < 0 || n > MaxPictures {
		return nil, fmt.Errorf("can't list %d pictures, the limit is %d", n, MaxPictures)
	}
	req := protocol.NewFrame(protocol.GetPicList, nil)
	if n > 0 {
		req.Opcode = protocol.GetPicList2
		req.Arg = uint32(n)
	}
	resp, err := e.c.Call(req, req.Opcode, e.timeout)
	if err != nil {
		return nil, err
	}
	if resp.Arg != 0 {
		return nil, protocol.Rejected(req.Opcode, resp.Arg)
	}
	return protocol.ParsePictureList(resp.Payload)
}

// Download copies the file at path on the camera into sink and returns the
// number of bytes written.
//
// The file is opened with a start request that announces its size, then
// fetched one chunk per request. Chunks are written in order as they
// arrive. A missing or repeated chunk, a short transfer or a digest
// mismatch fails with a Transfer error; sink then holds only the chunks
// accepted before the failure.
func (e *Engine) Download(path string, sink io.Writer) (int64, error) {
	s := &session{
		e:    e,
		id:   uuid.New(),
		path: path,
		sink: sink,
		d:    demux.NewSequential(0),
		sum:  md5.New(),
	}
	return s.run()
}

type session struct {
	e       *Engine
	id      uuid.UUID
	path    string
	sink    io.Writer
	d       *demux.Demuxer
	sum     hash.Hash
	total   int64
	written int64
}

func (s *session) run() (int64, error) {
	start := time.Now()
	log.Printf("download %s: fetching %s", s.id, s.path)

	open, err := s.request(&protocol.FileChunk{Flag: protocol.FileStart, Path: s.path}, 0)
	if err != nil {
		return 0, err
	}
	switch open.Flag {
	case protocol.FileStart:
	case protocol.FileNotFound:
		return 0, s.fail(ErrNotFound)
	default:
		return 0, s.failf("expected start of file, got %s", open.Flag)
	}
	s.total = int64(open.Total)

	for {
		index := uint32(s.d.Next())
		c, err := s.request(&protocol.FileChunk{Flag: protocol.FileData, Path: s.path, Index: index}, index)
		if err != nil {
			return s.written, err
		}
		done, err := s.accept(c)
		if err != nil {
			return s.written, err
		}
		if done {
			break
		}
	}
	log.Printf("download %s: %d bytes in %s", s.id, s.written, time.Since(start).Round(time.Millisecond))
	return s.written, nil
}

// accept handles the answer to a chunk request, reporting whether the file
// is complete.
func (s *session) accept(c *protocol.FileChunk) (bool, error) {
	switch c.Flag {
	case protocol.FileNotFound:
		return false, s.fail(ErrNotFound)

	case protocol.FileEnd:
		if _, err := s.d.Push(demux.Piece{Kind: demux.End}); err != nil {
			return false, s.fail(err)
		}
		if s.total > 0 && s.written != s.total {
			return false, s.failf("ended after %d of %d bytes", s.written, s.total)
		}
		return true, s.verify(c.MD5)

	case protocol.FileData:
		ev, err := s.d.Push(demux.Piece{Kind: demux.Fragment, Key: uint64(c.Index), Data: c.Data})
		if err != nil {
			return false, s.fail(err)
		}
		if ev.Unit == nil {
			return false, nil
		}
		if _, err := s.sink.Write(ev.Unit.Data); err != nil {
			return false, fmt.Errorf("download %s: write %s: %w", s.id, s.path, err)
		}
		s.sum.Write(ev.Unit.Data)
		s.written += int64(len(ev.Unit.Data))
		switch {
		case s.total > 0 && s.written > s.total:
			return false, s.failf("received %d bytes, more than the %d announced", s.written, s.total)
		case s.total > 0 && s.written == s.total:
			return true, s.verify(c.MD5)
		}
		return false, nil
	}
	return false, s.failf("unexpected %s chunk", c.Flag)
}

// verify checks the digest the camera sent, if it sent one.
func (s *session) verify(want string) error {
	if want == "" {
		return nil
	}
	if got := hex.EncodeToString(s.sum.Sum(nil)); got != want {
		return s.failf("md5 mismatch: got %s, camera sent %s", got, want)
	}
	return nil
}

// request sends one getfile request, trying again on timeout.
func (s *session) request(c *protocol.FileChunk, index uint32) (*protocol.FileChunk, error) {
	body, err := c.MarshalBinary()
	if err != nil {
		return nil, s.fail(err)
	}
	req := protocol.NewFrame(protocol.GetFile, body)
	req.Arg = index

	for attempt := 0; ; attempt++ {
		resp, err := s.e.c.Call(req, protocol.RetGetFile, s.e.timeout)
		if err == nil {
			return protocol.ParseFileChunk(resp.Payload)
		}
		if !errors.Is(err, lwerr.ErrTimeout) {
			return nil, err
		}
		if attempt == s.e.retries {
			return nil, s.fail(fmt.Errorf("chunk %d: %w", index, err))
		}
		log.Printf("download %s: chunk %d timed out, retrying (%d/%d)", s.id, index, attempt+1, s.e.retries)
	}
}

func (s *session) fail(err error) error {
	log.Printf("download %s: %s failed: %v", s.id, s.path, err)
	return lwerr.New(lwerr.Transfer, "download "+s.path, err)
}

func (s *session) failf(format string, v ...interface{}) error {
	return s.fail(fmt.Errorf(format, v...))
}

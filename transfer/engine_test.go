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

package transfer

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/lwdrone/correlator"
	"github.com/TheCacophonyProject/lwdrone/demux"
	"github.com/TheCacophonyProject/lwdrone/internal/fakecam"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

const (
	testPath = "/mnt/Video/20200604-040126.mp4"
	timeout  = 200 * time.Millisecond
)

// fileServer answers getfile requests for one file split into chunks.
type fileServer struct {
	chunks [][]byte
	// announce sends the total size with the start reply.
	announce bool
	md5      string
	// remap changes which chunk is served for a requested index.
	remap func(index uint32) uint32
	// ignore counts requests for an index that get no reply.
	ignore map[uint32]int
}

func newFileServer(chunks ...string) *fileServer {
	s := &fileServer{announce: true, ignore: make(map[uint32]int)}
	h := md5.New()
	for _, c := range chunks {
		s.chunks = append(s.chunks, []byte(c))
		h.Write([]byte(c))
	}
	s.md5 = hex.EncodeToString(h.Sum(nil))
	return s
}

func (s *fileServer) total() uint32 {
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return uint32(n)
}

func (s *fileServer) handle(req *protocol.Frame) []*protocol.Frame {
	c, err := protocol.ParseFileChunk(req.Payload)
	if err != nil {
		panic(err)
	}
	reply := &protocol.FileChunk{Path: c.Path}
	switch {
	case c.Path != testPath:
		reply.Flag = protocol.FileNotFound
	case c.Flag == protocol.FileStart:
		reply.Flag = protocol.FileStart
		if s.announce {
			reply.Total = s.total()
		}
	default:
		if s.ignore[c.Index] > 0 {
			s.ignore[c.Index]--
			return nil
		}
		i := c.Index
		if s.remap != nil {
			i = s.remap(i)
		}
		if int(i) < len(s.chunks) {
			reply.Flag = protocol.FileData
			reply.Index = i
			reply.Data = s.chunks[i]
		} else {
			reply.Flag = protocol.FileEnd
			reply.MD5 = s.md5
		}
	}
	body, err := reply.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return []*protocol.Frame{fakecam.Reply(req, protocol.RetGetFile, body)}
}

func newEngine(t *testing.T, h fakecam.Handler, retries int) (*Engine, *fakecam.Conn) {
	conn := fakecam.NewConn(h)
	require.NoError(t, conn.Connect())
	return New(correlator.New(conn), timeout, retries), conn
}

func TestDownload(t *testing.T) {
	s := newFileServer("first ", "second ", "third ", "fourth ", "fifth")
	e, conn := newEngine(t, s.handle, 0)

	var sink bytes.Buffer
	n, err := e.Download(testPath, &sink)
	require.NoError(t, err)
	assert.Equal(t, "first second third fourth fifth", sink.String())
	assert.Equal(t, int64(sink.Len()), n)

	// Open, then one request per chunk; the announced total ends it.
	reqs := conn.Requests()
	require.Len(t, reqs, 6)
	for i, req := range reqs[1:] {
		assert.Equal(t, protocol.GetFile, req.Opcode)
		assert.Equal(t, uint32(i), req.Arg)
	}
}

func TestDownloadEndsOnMarker(t *testing.T) {
	s := newFileServer("a", "b", "c")
	s.announce = false
	e, conn := newEngine(t, s.handle, 0)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	require.NoError(t, err)
	assert.Equal(t, "abc", sink.String())
	assert.Len(t, conn.Requests(), 5)
}

func TestDownloadSkippedChunk(t *testing.T) {
	s := newFileServer("0", "1", "2", "3", "4", "5")
	s.remap = func(i uint32) uint32 {
		if i >= 3 {
			return i + 1
		}
		return i
	}
	e, _ := newEngine(t, s.handle, 0)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.True(t, errors.Is(err, demux.ErrGap))
	assert.Equal(t, "012", sink.String())
}

func TestDownloadRepeatedChunk(t *testing.T) {
	s := newFileServer("0", "1", "2")
	s.remap = func(i uint32) uint32 {
		if i == 2 {
			return 1
		}
		return i
	}
	e, _ := newEngine(t, s.handle, 0)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.Equal(t, "01", sink.String())
}

func TestDownloadRetriesTimeout(t *testing.T) {
	s := newFileServer("a", "b", "c")
	s.ignore[1] = 2
	conn := fakecam.NewConn(s.handle)
	require.NoError(t, conn.Connect())
	e := New(correlator.New(conn), 30*time.Millisecond, 2)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	require.NoError(t, err)
	assert.Equal(t, "abc", sink.String())
	// open, 0, 1, 1, 1, 2
	assert.Len(t, conn.Requests(), 6)
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	s := newFileServer("a", "b", "c")
	s.ignore[1] = 3
	conn := fakecam.NewConn(s.handle)
	require.NoError(t, conn.Connect())
	e := New(correlator.New(conn), 30*time.Millisecond, 2)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.True(t, errors.Is(err, lwerr.ErrTimeout))
	assert.Equal(t, "a", sink.String())
}

func TestDownloadNotFound(t *testing.T) {
	e, conn := newEngine(t, newFileServer("a").handle, 0)

	var sink bytes.Buffer
	_, err := e.Download("/mnt/Video/missing.mp4", &sink)
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, sink.Len())
	assert.Len(t, conn.Requests(), 1)
}

func TestDownloadBadDigest(t *testing.T) {
	s := newFileServer("a", "b")
	s.announce = false
	s.md5 = "00000000000000000000000000000000"
	e, _ := newEngine(t, s.handle, 0)

	_, err := e.Download(testPath, new(bytes.Buffer))
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
}

func TestDownloadShort(t *testing.T) {
	s := newFileServer("a", "b")
	e, _ := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		c, _ := protocol.ParseFileChunk(req.Payload)
		if c.Flag == protocol.FileStart {
			body, _ := (&protocol.FileChunk{Flag: protocol.FileStart, Total: 10}).MarshalBinary()
			return []*protocol.Frame{fakecam.Reply(req, protocol.RetGetFile, body)}
		}
		return s.handle(req)
	}, 0)

	var sink bytes.Buffer
	_, err := e.Download(testPath, &sink)
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.Equal(t, "ab", sink.String())
}

func TestDownloadConnectionLost(t *testing.T) {
	conn := fakecam.NewConn(nil)
	require.NoError(t, conn.Connect())
	conn.HangUp()
	e := New(correlator.New(conn), timeout, 3)

	_, err := e.Download(testPath, new(bytes.Buffer))
	assert.True(t, errors.Is(err, lwerr.ErrConnection))
}

func recordings() []protocol.RecordingEntry {
	return []protocol.RecordingEntry{
		{
			Index:    0,
			Start:    time.Date(2020, 6, 4, 4, 1, 27, 0, time.UTC),
			Duration: 95 * time.Second,
			Path:     "/mnt/Video/20200604-040126.mp4",
		},
		{
			Index:    1,
			Start:    time.Date(2020, 6, 4, 4, 10, 40, 0, time.UTC),
			Duration: 20 * time.Second,
			Path:     "/mnt/Video/20200604-041040.mp4",
		},
	}
}

func TestListRecordings(t *testing.T) {
	body, err := protocol.MarshalRecordings(recordings())
	require.NoError(t, err)
	e, conn := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{fakecam.Reply(req, protocol.GetRecList, body)}
	}, 0)

	entries, err := e.ListRecordings()
	require.NoError(t, err)
	assert.Equal(t, recordings(), entries)

	reqs := conn.Requests()
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0].Payload, 20)
}

func TestListRecordingsContinued(t *testing.T) {
	want := recordings()
	first, err := protocol.MarshalRecordings(want[:1])
	require.NoError(t, err)
	second, err := protocol.MarshalRecordings(want[1:])
	require.NoError(t, err)

	e, conn := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		a := fakecam.Reply(req, protocol.GetRecList, first)
		a.Aux = 1
		return []*protocol.Frame{a, fakecam.Reply(req, protocol.GetRecList, second)}
	}, 0)

	entries, err := e.ListRecordings()
	require.NoError(t, err)
	assert.Equal(t, want, entries)
	assert.Len(t, conn.Requests(), 1)
}

func TestListRecordingsContinuationTimeout(t *testing.T) {
	first, err := protocol.MarshalRecordings(recordings()[:1])
	require.NoError(t, err)
	e, _ := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		a := fakecam.Reply(req, protocol.GetRecList, first)
		a.Aux = 1
		return []*protocol.Frame{a}
	}, 0)

	entries, err := e.ListRecordings()
	assert.True(t, errors.Is(err, lwerr.ErrTimeout))
	assert.Nil(t, entries)
}

func TestListRecordingsEmpty(t *testing.T) {
	e, _ := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{fakecam.Reply(req, protocol.GetRecList, nil)}
	}, 0)

	entries, err := e.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListRecordingsGarbled(t *testing.T) {
	e, _ := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{fakecam.Reply(req, protocol.GetRecList, make([]byte, 50))}
	}, 0)

	_, err := e.ListRecordings()
	assert.True(t, errors.Is(err, lwerr.ErrProtocol))
}

func TestListPictures(t *testing.T) {
	pics := []protocol.PictureEntry{
		{Size: 10240, Path: "/mnt/Photo/20200604-040200.jpg"},
		{Size: 20480, Path: "/mnt/Photo/20200604-040300.jpg"},
	}
	body, err := protocol.MarshalPictureList(pics)
	require.NoError(t, err)
	e, conn := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{fakecam.Reply(req, req.Opcode, body)}
	}, 0)

	got, err := e.ListPictures(0)
	require.NoError(t, err)
	assert.Equal(t, pics, got)

	_, err = e.ListPictures(100)
	require.NoError(t, err)

	reqs := conn.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, protocol.GetPicList, reqs[0].Opcode)
	assert.Equal(t, protocol.GetPicList2, reqs[1].Opcode)
	assert.Equal(t, uint32(100), reqs[1].Arg)
}

func TestListPicturesRejected(t *testing.T) {
	e, _ := newEngine(t, func(req *protocol.Frame) []*protocol.Frame {
		f := fakecam.Reply(req, req.Opcode, nil)
		f.Arg = 1
		return []*protocol.Frame{f}
	}, 0)

	_, err := e.ListPictures(0)
	assert.True(t, errors.Is(err, protocol.ErrRejected))

	_, err = e.ListPictures(MaxPictures + 1)
	assert.Error(t, err)
}

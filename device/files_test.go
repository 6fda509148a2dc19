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

package device

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/lwdrone/internal/fakecam"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transfer"
)

const picPath = "/mnt/Photo/20200604-040127.jpg"

// serveFile answers getfile requests for path from chunks.
func serveFile(path string, chunks ...string) fakecam.Handler {
	var total uint32
	h := md5.New()
	for _, c := range chunks {
		total += uint32(len(c))
		h.Write([]byte(c))
	}
	sum := hex.EncodeToString(h.Sum(nil))

	return func(req *protocol.Frame) []*protocol.Frame {
		if req.Opcode != protocol.GetFile {
			return nil
		}
		c, err := protocol.ParseFileChunk(req.Payload)
		if err != nil {
			panic(err)
		}
		reply := &protocol.FileChunk{Path: c.Path}
		switch {
		case c.Path != path:
			reply.Flag = protocol.FileNotFound
		case c.Flag == protocol.FileStart:
			reply.Flag = protocol.FileStart
			reply.Total = total
		case int(c.Index) < len(chunks):
			reply.Flag = protocol.FileData
			reply.Index = c.Index
			reply.Data = []byte(chunks[c.Index])
		default:
			reply.Flag = protocol.FileEnd
			reply.MD5 = sum
		}
		body, err := reply.MarshalBinary()
		if err != nil {
			panic(err)
		}
		return []*protocol.Frame{fakecam.Reply(req, protocol.RetGetFile, body)}
	}
}

func pictureAnswer(t *testing.T, pic *protocol.Picture) fakecam.Handler {
	return answer(nil, map[protocol.Opcode][]byte{protocol.TakePic: marshal(t, pic)})
}

func TestTakePictureInline(t *testing.T) {
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, pictureAnswer(t, &protocol.Picture{
		Size: 4,
		Path: picPath,
		Data: []byte("jpeg"),
	}))
	d := newTestDevice(cam)
	defer d.Close()

	jpeg, err := d.TakePicture()
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), jpeg)
	assert.Empty(t, cam.Conns(streamAddr))
}

func TestTakePictureDownloaded(t *testing.T) {
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, pictureAnswer(t, &protocol.Picture{Size: 15, Path: picPath}))
	cam.Handle(streamAddr, serveFile(picPath, "jpeg ", "from ", "card!"))
	d := newTestDevice(cam)
	defer d.Close()

	jpeg, err := d.TakePicture()
	require.NoError(t, err)
	assert.Equal(t, "jpeg from card!", string(jpeg))

	conn := cam.Last(streamAddr)
	assert.Len(t, conn.Requests(), 4)
	assert.False(t, conn.Connected())
}

func TestDownload(t *testing.T) {
	cam := fakecam.NewCamera()
	cam.Handle(streamAddr, serveFile(picPath, "some", "thing"))
	d := newTestDevice(cam)
	defer d.Close()

	var buf bytes.Buffer
	n, err := d.Download(picPath, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "something", buf.String())
}

func TestDownloadNotFound(t *testing.T) {
	cam := fakecam.NewCamera()
	cam.Handle(streamAddr, serveFile(picPath, "x"))
	d := newTestDevice(cam)
	defer d.Close()

	var buf bytes.Buffer
	_, err := d.Download("/mnt/Photo/missing.jpg", &buf)
	assert.True(t, errors.Is(err, transfer.ErrNotFound))
	assert.True(t, errors.Is(err, lwerr.ErrTransfer))
	assert.Zero(t, buf.Len())
}

func TestDownloadUnreachable(t *testing.T) {
	d := newTestDevice(fakecam.NewCamera())
	defer d.Close()

	_, err := d.Download(picPath, new(bytes.Buffer))
	assert.True(t, errors.Is(err, lwerr.ErrConnection))
}

func TestDownloadDuringStream(t *testing.T) {
	cam := fakecam.NewCamera()
	live := liveCamera("unit")
	file := serveFile(picPath, "data")
	cam.Handle(streamAddr, func(req *protocol.Frame) []*protocol.Frame {
		if req.Opcode == protocol.GetFile {
			return file(req)
		}
		return live(req)
	})
	d := newTestDevice(cam)
	defer d.Close()

	s, err := d.StartVideoStream(false)
	require.NoError(t, err)
	defer s.Stop()

	var buf bytes.Buffer
	_, err = d.Download(picPath, &buf)
	require.NoError(t, err)
	assert.Equal(t, "data", buf.String())
	assert.Len(t, cam.Conns(streamAddr), 2)
	assert.True(t, d.Streaming())
}

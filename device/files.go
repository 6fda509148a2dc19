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
	"io"

	"github.com/TheCacophonyProject/lwdrone/correlator"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transfer"
)

// ListRecordings returns a fresh listing of the recordings on the camera,
// in the order the camera reports them.
func (d *Device) ListRecordings() ([]protocol.RecordingEntry, error) {
	var entries []protocol.RecordingEntry
	err := d.control(func(c *correlator.Correlator) error {
		var err error
		entries, err = transfer.New(c, d.conf.CommandTimeout, 0).ListRecordings()
		return err
	})
	return entries, err
}

// ListPictures returns up to n of the pictures saved on the camera, or the
// camera's default listing when n is zero.
func (d *Device) ListPictures(n int) ([]protocol.PictureEntry, error) {
	var entries []protocol.PictureEntry
	err := d.control(func(c *correlator.Correlator) error {
		var err error
		entries, err = transfer.New(c, d.conf.CommandTimeout, 0).ListPictures(n)
		return err
	})
	return entries, err
}

// Download copies the file at path on the camera into sink over its own
// stream connection, returning the bytes written. On failure sink holds
// an incomplete file and the error is a Transfer error (or the Connection
// error that cut the download short).
func (d *Device) Download(path string, sink io.Writer) (int64, error) {
	conn := d.dial(d.conf.StreamAddr())
	if err := conn.Connect(); err != nil {
		return 0, err
	}
	defer conn.Close()
	return transfer.New(correlator.New(conn), d.conf.StreamTimeout, d.conf.ChunkRetries).Download(path, sink)
}

// DeleteFile removes a file from the camera's SD card.
func (d *Device) DeleteFile(path string) error {
	body, err := protocol.PathRequest(path)
	if err != nil {
		return err
	}
	return d.set(protocol.DelFile, 0, body)
}

// TakePicture takes a still, which the camera also saves to its SD card,
// and returns the JPEG. When the answer doesn't carry the whole image the
// saved file is downloaded instead.
func (d *Device) TakePicture() ([]byte, error) {
	resp, err := d.get(protocol.TakePic)
	if err != nil {
		return nil, err
	}
	pic, err := protocol.ParsePicture(resp.Payload)
	if err != nil {
		return nil, err
	}
	if pic.Complete() {
		return pic.Data[:pic.Size], nil
	}
	var buf bytes.Buffer
	if _, err := d.Download(pic.Path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

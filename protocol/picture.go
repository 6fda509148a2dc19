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

package protocol

import (
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
)

const (
	// PictureHeaderSize is the header length of a takepic response.
	PictureHeaderSize = 128
	// PictureEntrySize is the length of one picture list entry.
	PictureEntrySize = 124
)

// Picture is the answer to takepic: where the camera saved the JPEG, how
// big it is and whatever part of it came back inline.
type Picture struct {
	Size uint32
	// Taken is the time of day the camera stamped on the picture.
	Taken time.Duration
	Path  string
	Data  []byte
}

// Complete reports whether the whole JPEG came back inline.
func (p *Picture) Complete() bool {
	return p.Size > 0 && uint32(len(p.Data)) >= p.Size
}

func ParsePicture(data []byte) (*Picture, error) {
	if len(data) < PictureHeaderSize {
		return nil, badLength("picture", len(data), "at least 128")
	}
	ms := le.Uint32(data[4:])
	return &Picture{
		Size:  le.Uint32(data[0:]),
		Taken: time.Duration(ms/1000) * time.Second,
		Path:  cstring(data[12 : 12+PathMax]),
		Data:  data[PictureHeaderSize:],
	}, nil
}

func (p *Picture) MarshalBinary() ([]byte, error) {
	b := make([]byte, PictureHeaderSize+len(p.Data))
	le.PutUint32(b[0:], p.Size)
	le.PutUint32(b[4:], uint32(p.Taken/time.Millisecond))
	if err := putCString(b[12:12+PathMax], p.Path); err != nil {
		return nil, err
	}
	copy(b[PictureHeaderSize:], p.Data)
	return b, nil
}

// PictureEntry is one picture stored on the SD card.
type PictureEntry struct {
	Size uint32
	Path string
}

// ParsePictureList decodes a getpiclist body.
func ParsePictureList(data []byte) ([]PictureEntry, error) {
	if len(data)%PictureEntrySize != 0 {
		return nil, badLength("picture list", len(data), "a multiple of 124")
	}
	var entries []PictureEntry
	for off := 0; off < len(data); off += PictureEntrySize {
		b := data[off : off+PictureEntrySize]
		if flag := le.Uint32(b); flag != 1 {
			return nil, lwerr.Errorf(lwerr.Protocol, "parse picture list",
				"entry %d has flag %d", len(entries), flag)
		}
		entries = append(entries, PictureEntry{
			Size: le.Uint32(b[4:]),
			Path: cstring(b[24:]),
		})
	}
	return entries, nil
}

// MarshalPictureList encodes entries the way the camera lists them.
func MarshalPictureList(entries []PictureEntry) ([]byte, error) {
	data := make([]byte, len(entries)*PictureEntrySize)
	for i, e := range entries {
		b := data[i*PictureEntrySize:]
		le.PutUint32(b, 1)
		le.PutUint32(b[4:], e.Size)
		if err := putCString(b[24:24+PathMax], e.Path); err != nil {
			return nil, err
		}
	}
	return data, nil
}

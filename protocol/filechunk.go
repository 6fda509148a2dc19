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

import "fmt"

// FileHeaderSize is the length of the header on every getfile frame.
const FileHeaderSize = 196

const (
	filePathOffset = 16
	fileMD5Offset  = filePathOffset + PathMax
	fileMD5Size    = 32
)

// FileFlag says what a getfile frame carries.
type FileFlag uint32

const (
	FileNotFound FileFlag = 0
	FileStart    FileFlag = 1
	FileData     FileFlag = 2
	FileEnd      FileFlag = 3
)

func (f FileFlag) String() string {
	switch f {
	case FileNotFound:
		return "notfound"
	case FileStart:
		return "start"
	case FileData:
		return "data"
	case FileEnd:
		return "end"
	}
	return fmt.Sprintf("flag(%d)", uint32(f))
}

// FileChunk is one frame of a file transfer, in either direction. Requests
// carry no data; responses carry Size bytes.
type FileChunk struct {
	Flag  FileFlag
	Total uint32
	Index uint32
	Path  string
	// MD5 is the hex digest of the whole file, sent with the end marker.
	MD5  string
	Data []byte
}

// ParseFileChunk decodes the body of a retgetfile frame.
func ParseFileChunk(data []byte) (*FileChunk, error) {
	if len(data) < FileHeaderSize {
		return nil, badLength("file chunk", len(data), "at least 196")
	}
	size := le.Uint32(data[4:])
	body := data[FileHeaderSize:]
	if uint32(len(body)) != size {
		return nil, badLength("file chunk data", len(body), fmt.Sprint(size))
	}
	return &FileChunk{
		Flag:  FileFlag(le.Uint32(data[0:])),
		Total: le.Uint32(data[8:]),
		Index: le.Uint32(data[12:]),
		Path:  cstring(data[filePathOffset:fileMD5Offset]),
		MD5:   cstring(data[fileMD5Offset : fileMD5Offset+fileMD5Size]),
		Data:  body,
	}, nil
}

// MarshalBinary encodes c with its data appended.
func (c *FileChunk) MarshalBinary() ([]byte, error) {
	b := make([]byte, FileHeaderSize+len(c.Data))
	le.PutUint32(b[0:], uint32(c.Flag))
	le.PutUint32(b[4:], uint32(len(c.Data)))
	le.PutUint32(b[8:], c.Total)
	le.PutUint32(b[12:], c.Index)
	if err := putCString(b[filePathOffset:fileMD5Offset], c.Path); err != nil {
		return nil, err
	}
	if err := putCString(b[fileMD5Offset:fileMD5Offset+fileMD5Size], c.MD5); err != nil {
		return nil, err
	}
	copy(b[FileHeaderSize:], c.Data)
	return b, nil
}

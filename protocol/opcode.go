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

// Opcode is the command type word of a frame header.
type Opcode uint32

const (
	Heartbeat   Opcode = 1
	StartStream Opcode = 2
	StopStream  Opcode = 3
	SetTime     Opcode = 4
	GetTime     Opcode = 5
	GetRecPlan  Opcode = 6
	GetRecList  Opcode = 8
	StartReplay Opcode = 9
	StopReplay  Opcode = 16
	SetRecPlan  Opcode = 17
	GetFile     Opcode = 18
	TakePic     Opcode = 19
	DelFile     Opcode = 20
	ReformatSD  Opcode = 21
	SetWiFiName Opcode = 22
	SetWiFiPass Opcode = 23
	SetWiFiChan Opcode = 24
	RestartWiFi Opcode = 25
	SetWiFiDefs Opcode = 32
	GetCamFlip  Opcode = 33
	SetCamFlip  Opcode = 34
	GetBaudRate Opcode = 35
	SetBaudRate Opcode = 36
	GetConfig   Opcode = 37
	SetConfig   Opcode = 38
	GetPicList  Opcode = 39
	Get1080p    Opcode = 40
	Set1080p    Opcode = 41
	GetPicList2 Opcode = 42
	TakePic2    Opcode = 43
	GetRecTime  Opcode = 48
	SetRecTime  Opcode = 49

	RetStream    Opcode = 257
	RetReplay    Opcode = 259
	RetReplayEnd Opcode = 261
	RetGetFile   Opcode = 262
)

var opcodeNames = map[Opcode]string{
	Heartbeat:    "heartbeat",
	StartStream:  "startstream",
	StopStream:   "stopstream",
	SetTime:      "settime",
	GetTime:      "gettime",
	GetRecPlan:   "getrecplan",
	GetRecList:   "getreclist",
	StartReplay:  "startreplay",
	StopReplay:   "stopreplay",
	SetRecPlan:   "setrecplan",
	GetFile:      "getfile",
	TakePic:      "takepic",
	DelFile:      "delfile",
	ReformatSD:   "reformatsd",
	SetWiFiName:  "setwifiname",
	SetWiFiPass:  "setwifipass",
	SetWiFiChan:  "setwifichan",
	RestartWiFi:  "restartwifi",
	SetWiFiDefs:  "setwifidefs",
	GetCamFlip:   "getcamflip",
	SetCamFlip:   "setcamflip",
	GetBaudRate:  "getbaudrate",
	SetBaudRate:  "setbaudrate",
	GetConfig:    "getconfig",
	SetConfig:    "setconfig",
	GetPicList:   "getpiclist",
	Get1080p:     "get1080p",
	Set1080p:     "set1080p",
	GetPicList2:  "getpiclist2",
	TakePic2:     "takepic2",
	GetRecTime:   "getrectime",
	SetRecTime:   "setrectime",
	RetStream:    "retstream",
	RetReplay:    "retreplay",
	RetReplayEnd: "retreplayend",
	RetGetFile:   "retgetfile",
}

// Known reports whether op is one of the opcodes the camera is known to use.
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Streaming reports whether op only ever appears on a data stream.
func (op Opcode) Streaming() bool {
	switch op {
	case RetStream, RetReplay, RetReplayEnd, RetGetFile:
		return true
	}
	return false
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(op))
}

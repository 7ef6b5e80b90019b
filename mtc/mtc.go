// Copyright 2013 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mtc decodes and encodes MIDI Time Code carried as Full Frame
// (SysEx) and Quarter Frame (System Common) messages.
package mtc

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	StatusSysEx        = 0xf0
	StatusQuarterFrame = 0xf1
	StatusEOX          = 0xf7

	UniversalRealTime = 0x7f
	AllCall           = 0x7f
	SubIDTimeCode     = 0x01
	SubIDFullMessage  = 0x01

	// NumPieces is the number of quarter frame messages in one cycle.
	NumPieces = 8
)

// Rate is the 2-bit frame rate family carried in the hour field.
type Rate uint8

const (
	Rate24       Rate = 0
	Rate25       Rate = 1
	Rate2997Drop Rate = 2
	Rate30       Rate = 3
)

// Frames per second as num/den, indexed by Rate.
var (
	rateNum     = [4]int64{24, 25, 2997, 30}
	rateDen     = [4]int64{1, 1, 100, 1}
	rateNominal = [4]int{24, 25, 30, 30}
	rateNames   = [4]string{"24", "25", "29.97df", "30"}
)

func (r Rate) index() int {
	return int(r & 0x3)
}

// FramesPerSecond returns 24, 25, 29.97 or 30.
func (r Rate) FramesPerSecond() float64 {
	return float64(rateNum[r.index()]) / float64(rateDen[r.index()])
}

// FrameDuration returns the length of one frame in seconds.
func (r Rate) FrameDuration() float64 {
	return float64(rateDen[r.index()]) / float64(rateNum[r.index()])
}

// Nominal is the integer frame count per timecode second (30 for drop-frame).
func (r Rate) Nominal() int {
	return rateNominal[r.index()]
}

func (r Rate) DropFrame() bool {
	return r.index() == int(Rate2997Drop)
}

func (r Rate) String() string {
	return rateNames[r.index()]
}

// ParseRate accepts "24", "25", "29.97" (or "29.97df"), and "30".
func ParseRate(s string) (Rate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24":
		return Rate24, nil
	case "25":
		return Rate25, nil
	case "29.97", "29.97df", "29.97drop", "2997":
		return Rate2997Drop, nil
	case "30", "30nd":
		return Rate30, nil
	}
	return 0, fmt.Errorf("mtc: unknown frame rate %q", s)
}

// Timecode is one decoded SMPTE time.  Field values are kept exactly as
// received; use Valid to check the protocol's intended ranges.
type Timecode struct {
	Rate   Rate
	Hour   uint8
	Minute uint8
	Second uint8
	Frame  uint8
}

func (t Timecode) wholeSeconds() int64 {
	return int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)
}

// Seconds is hour*3600 + minute*60 + second + frame*FrameDuration.
func (t Timecode) Seconds() float64 {
	return float64(t.wholeSeconds()) + float64(t.Frame)*t.Rate.FrameDuration()
}

func (t Timecode) Millis() int64 {
	return t.scaled(1000)
}

func (t Timecode) Micros() int64 {
	return t.scaled(1000000)
}

// scaled computes Seconds()*unit truncated, without float rounding.
func (t Timecode) scaled(unit int64) int64 {
	i := t.Rate.index()
	return t.wholeSeconds()*unit + int64(t.Frame)*unit*rateDen[i]/rateNum[i]
}

// FrameCount is Seconds()*FramesPerSecond truncated to an integer.
func (t Timecode) FrameCount() int64 {
	i := t.Rate.index()
	return t.wholeSeconds()*rateNum[i]/rateDen[i] + int64(t.Frame)
}

// String formats HH:MM:SS:FF, or HH:MM:SS;FF for drop-frame.
func (t Timecode) String() string {
	sep := ':'
	if t.Rate.DropFrame() {
		sep = ';'
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%02d", t.Hour, t.Minute, t.Second, sep, t.Frame)
}

// Valid reports whether every field is inside the range the protocol
// intends, including the frame numbers skipped by drop-frame counting.
func (t Timecode) Valid() bool {
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return false
	}
	if int(t.Frame) >= t.Rate.Nominal() {
		return false
	}
	if t.Rate.DropFrame() && t.Second == 0 && t.Frame < 2 && t.Minute%10 != 0 {
		return false
	}
	return true
}

// ParseTimecode reads HH:MM:SS:FF (or HH:MM:SS;FF) at the given rate.
func ParseTimecode(s string, r Rate) (Timecode, error) {
	parts := strings.FieldsFunc(s, func(c rune) bool {
		return c == ':' || c == ';'
	})
	if len(parts) != 4 {
		return Timecode{}, fmt.Errorf("mtc: malformed timecode %q", s)
	}
	var f [4]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Timecode{}, fmt.Errorf("mtc: malformed timecode %q: %w", s, err)
		}
		f[i] = uint8(v)
	}
	return Timecode{Rate: r, Hour: f[0], Minute: f[1], Second: f[2], Frame: f[3]}, nil
}

const (
	dropPerMinute     = 2
	framesPerMinuteDF = 60*30 - dropPerMinute
	framesPer10MinDF  = 10*framesPerMinuteDF + dropPerMinute
	secondsPerDay     = 24 * 3600
)

// Index returns the frame number of t since 00:00:00:00, honoring
// drop-frame numbering.
func (t Timecode) Index() int64 {
	n := t.wholeSeconds()*int64(t.Rate.Nominal()) + int64(t.Frame)
	if t.Rate.DropFrame() {
		minutes := int64(t.Hour)*60 + int64(t.Minute)
		n -= dropPerMinute * (minutes - minutes/10)
	}
	return n
}

// FromIndex is the inverse of Index, wrapping at 24 hours.
func FromIndex(r Rate, n int64) Timecode {
	perDay := int64(secondsPerDay * r.Nominal())
	if r.DropFrame() {
		perDay = framesPer10MinDF * 6 * 24
	}
	n %= perDay
	if n < 0 {
		n += perDay
	}
	if r.DropFrame() {
		d, m := n/framesPer10MinDF, n%framesPer10MinDF
		n += 9 * dropPerMinute * d
		if m > 1 {
			n += dropPerMinute * ((m - dropPerMinute) / framesPerMinuteDF)
		}
	}
	fps := int64(r.Nominal())
	return Timecode{
		Rate:   r,
		Frame:  uint8(n % fps),
		Second: uint8(n / fps % 60),
		Minute: uint8(n / fps / 60 % 60),
		Hour:   uint8(n / fps / 3600 % 24),
	}
}

// Add advances t by frames (which may be negative).
func (t Timecode) Add(frames int) Timecode {
	return FromIndex(t.Rate, t.Index()+int64(frames))
}

package timesync

import "fmt"

type Kind int

const (
	KindTick Kind = iota
	KindPlay
	KindPause
	KindSeek
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindPlay:
		return "play"
	case KindPause:
		return "pause"
	case KindSeek:
		return "seek"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a playback signal carrying the widget position at the time it fired.
type Event struct {
	Kind     Kind
	Position float64
}

func Tick(position float64) Event  { return Event{Kind: KindTick, Position: position} }
func Play(position float64) Event  { return Event{Kind: KindPlay, Position: position} }
func Pause(position float64) Event { return Event{Kind: KindPause, Position: position} }
func Seek(position float64) Event  { return Event{Kind: KindSeek, Position: position} }

// PlaybackState is the externally observable playback position.
type PlaybackState struct {
	PositionSeconds     float64 `json:"positionSeconds"`
	IsPlaying           bool    `json:"isPlaying"`
	LastReportedSeconds float64 `json:"lastReportedSeconds"`
}

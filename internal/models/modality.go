package models

import "fmt"

// Modality is one trainable stimulus channel.
type Modality int

const (
	Position1 Modality = iota
	Position2
	Position3
	Position4
	Color
	Image
	Vis1
	Vis2
	Vis3
	Vis4
	Audio
	Audio2
	VisVis
	VisAudio
	AudioVis
	Arithmetic

	NumModalities = int(Arithmetic) + 1
)

var modalityNames = [NumModalities]string{
	Position1:  "position1",
	Position2:  "position2",
	Position3:  "position3",
	Position4:  "position4",
	Color:      "color",
	Image:      "image",
	Vis1:       "vis1",
	Vis2:       "vis2",
	Vis3:       "vis3",
	Vis4:       "vis4",
	Audio:      "audio",
	Audio2:     "audio2",
	VisVis:     "visvis",
	VisAudio:   "visaudio",
	AudioVis:   "audiovis",
	Arithmetic: "arithmetic",
}

func (m Modality) String() string {
	if m < 0 || int(m) >= NumModalities {
		return fmt.Sprintf("modality(%d)", int(m))
	}
	return modalityNames[m]
}

// ParseModality maps a wire name such as "visaudio" back to its Modality.
func ParseModality(name string) (Modality, error) {
	for i, n := range modalityNames {
		if n == name {
			return Modality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown modality %q", name)
}

// IsCombination reports whether the modality compares two different streams.
func (m Modality) IsCombination() bool {
	return m == VisVis || m == VisAudio || m == AudioVis
}

// RecordOrder is the fixed column order of per-modality percents in history records.
var RecordOrder = [NumModalities]Modality{
	Position1, Audio, Color, VisVis, AudioVis, Arithmetic, Image, VisAudio,
	Audio2, Position2, Position3, Position4, Vis1, Vis2, Vis3, Vis4,
}

// Stream is a raw per-trial stimulus channel. Modalities are scored by
// comparing one stream now against one stream lag trials back.
type Stream int

const (
	StreamPosition1 Stream = iota
	StreamPosition2
	StreamPosition3
	StreamPosition4
	StreamVis1
	StreamVis2
	StreamVis3
	StreamVis4
	StreamColor
	StreamVis
	StreamAudio
	StreamAudio2

	NumStreams = int(StreamAudio2) + 1
)

var streamNames = [NumStreams]string{
	"position1", "position2", "position3", "position4",
	"vis1", "vis2", "vis3", "vis4",
	"color", "vis", "audio", "audio2",
}

func (s Stream) String() string {
	if s < 0 || int(s) >= NumStreams {
		return fmt.Sprintf("stream(%d)", int(s))
	}
	return streamNames[s]
}

// PositionStream returns the stream for position slot i (1-based).
func PositionStream(i int) Stream { return StreamPosition1 + Stream(i-1) }

// VisStream returns the stream for multi-stim vis slot i (1-based).
func VisStream(i int) Stream { return StreamVis1 + Stream(i-1) }

type streamPair struct {
	current Stream
	back    Stream
}

// Arithmetic has no stream pair; its zero entry is never consulted.
var modalityStreams = [NumModalities]streamPair{
	Position1: {StreamPosition1, StreamPosition1},
	Position2: {StreamPosition2, StreamPosition2},
	Position3: {StreamPosition3, StreamPosition3},
	Position4: {StreamPosition4, StreamPosition4},
	Color:     {StreamColor, StreamColor},
	Image:     {StreamVis, StreamVis},
	Vis1:      {StreamVis1, StreamVis1},
	Vis2:      {StreamVis2, StreamVis2},
	Vis3:      {StreamVis3, StreamVis3},
	Vis4:      {StreamVis4, StreamVis4},
	Audio:     {StreamAudio, StreamAudio},
	Audio2:    {StreamAudio2, StreamAudio2},
	VisVis:    {StreamVis, StreamVis},
	VisAudio:  {StreamVis, StreamAudio},
	AudioVis:  {StreamAudio, StreamVis},
}

// Streams returns the stream read on the current trial and the stream read
// lag trials back when checking m for a match.
func (m Modality) Streams() (current, back Stream) {
	p := modalityStreams[m]
	return p.current, p.back
}

// PositionSlot returns the 1-based slot of a position modality, or 0.
func (m Modality) PositionSlot() int {
	if m >= Position1 && m <= Position4 {
		return int(m-Position1) + 1
	}
	return 0
}

func (m Modality) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Modality) UnmarshalText(text []byte) error {
	parsed, err := ParseModality(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
